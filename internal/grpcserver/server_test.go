package grpcserver_test

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/AtharvaWandhare/synapse/internal/auth"
	"github.com/AtharvaWandhare/synapse/internal/feed"
	"github.com/AtharvaWandhare/synapse/internal/grpcserver"
	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/scoring"
	"github.com/AtharvaWandhare/synapse/internal/store/memory"
)

var (
	seeker  = model.Identity{UserID: "seeker-s", Role: model.RoleJobSeeker}
	company = model.Identity{UserID: "company-c", Role: model.RoleCompany}
)

type harness struct {
	store  *memory.Store
	client *grpcserver.Client
	conn   *grpc.ClientConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memory.New()
	srv := grpcserver.NewServer(
		ledger.NewService(st, nil, nil),
		feed.NewSelector(st, nil),
		scoring.NewRecomputer(st, scoring.NewLocalScorer(), nil, time.Second, 1),
		auth.NewResolver(nil, true),
	)
	gs := grpcserver.New(srv, nil)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return &harness{store: st, client: grpcserver.NewClient(conn), conn: conn}
}

func as(id model.Identity) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(),
		auth.HeaderUserID, id.UserID, auth.HeaderUserRole, string(id.Role))
}

func (h *harness) job(t *testing.T) string {
	t.Helper()
	j, err := h.store.CreateJob(context.Background(), model.JobPosting{
		CompanyID:   company.UserID,
		Title:       "Backend Engineer",
		Description: "Go services",
		JobType:     model.JobTypeFullTime,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return j.ID
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if status.Code(err) != code {
		t.Fatalf("code = %s, want %s (err %v)", status.Code(err), code, err)
	}
}

func TestSwipeAndStatusOverGRPC(t *testing.T) {
	h := newHarness(t)
	jobID := h.job(t)

	card, err := h.client.Call(as(seeker), "NextJob", nil)
	if err != nil {
		t.Fatal(err)
	}
	if card["jobId"] != jobID {
		t.Fatalf("card = %v", card)
	}

	res, err := h.client.Call(as(seeker), "RecordSwipe", map[string]any{"jobId": jobID, "decision": "like"})
	if err != nil {
		t.Fatal(err)
	}
	match, _ := res["match"].(map[string]any)
	matchID, _ := match["id"].(string)
	if matchID == "" {
		t.Fatalf("response = %v", res)
	}

	_, err = h.client.Call(as(seeker), "RecordSwipe", map[string]any{"jobId": jobID, "decision": "like"})
	wantCode(t, err, codes.FailedPrecondition)

	_, err = h.client.Call(as(seeker), "NextJob", nil)
	wantCode(t, err, codes.NotFound)

	_, err = h.client.Call(as(seeker), "SetApplicationStatus", map[string]any{"matchId": matchID, "newStatus": "accepted"})
	wantCode(t, err, codes.PermissionDenied)

	m, err := h.client.Call(as(company), "SetApplicationStatus", map[string]any{"matchId": matchID, "newStatus": "accepted"})
	if err != nil {
		t.Fatal(err)
	}
	if m["applicationStatus"] != "accepted" {
		t.Fatalf("status = %v", m["applicationStatus"])
	}

	hidden, err := h.client.Call(as(seeker), "HideMatch", map[string]any{"matchId": matchID})
	if err != nil || hidden["isHiddenByUser"] != true {
		t.Fatalf("HideMatch = %v, %v", hidden, err)
	}
	shown, err := h.client.Call(as(seeker), "UnhideMatch", map[string]any{"matchId": matchID})
	if err != nil || shown["isHiddenByUser"] != false {
		t.Fatalf("UnhideMatch = %v, %v", shown, err)
	}

	_, err = h.client.Call(as(company), "RecomputeScore", map[string]any{"matchId": matchID})
	wantCode(t, err, codes.FailedPrecondition)

	if _, err := h.store.UpsertSeekerProfile(context.Background(), model.SeekerProfile{
		SeekerID:    seeker.UserID,
		ProfileText: "Go developer building backend services",
		Skills:      []string{"go"},
	}); err != nil {
		t.Fatal(err)
	}
	scored, err := h.client.Call(as(company), "RecomputeScore", map[string]any{"matchId": matchID})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := scored["compatibilityScore"].(float64); !ok {
		t.Fatalf("score = %v", scored["compatibilityScore"])
	}
}

func TestReapplyOverGRPC(t *testing.T) {
	h := newHarness(t)
	jobID := h.job(t)

	if _, err := h.client.Call(as(seeker), "RecordSwipe", map[string]any{"jobId": jobID, "decision": "dislike"}); err != nil {
		t.Fatal(err)
	}
	for i, wantCreated := range []bool{true, false} {
		res, err := h.client.Call(as(seeker), "Reapply", map[string]any{"jobId": jobID})
		if err != nil {
			t.Fatalf("Reapply #%d: %v", i+1, err)
		}
		if res["created"] != wantCreated {
			t.Fatalf("Reapply #%d created = %v", i+1, res["created"])
		}
	}
}

func TestRequestErrors(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		ctx    context.Context
		method string
		req    map[string]any
		want   codes.Code
	}{
		{"no metadata", context.Background(), "NextJob", nil, codes.Unauthenticated},
		{"bad role", metadata.AppendToOutgoingContext(context.Background(), auth.HeaderUserID, "u", auth.HeaderUserRole, "admin"), "NextJob", nil, codes.Unauthenticated},
		{"unknown field", as(seeker), "RecordSwipe", map[string]any{"job_id": "x"}, codes.InvalidArgument},
		{"bad decision", as(seeker), "RecordSwipe", map[string]any{"jobId": "x", "decision": "maybe"}, codes.InvalidArgument},
		{"unknown job", as(seeker), "RecordSwipe", map[string]any{"jobId": "x", "decision": "like"}, codes.NotFound},
		{"unknown match", as(company), "SetApplicationStatus", map[string]any{"matchId": "m", "newStatus": "accepted"}, codes.NotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.client.Call(tc.ctx, tc.method, tc.req)
			wantCode(t, err, tc.want)
		})
	}
}

func TestHealthService(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s", resp.Status)
	}
}
