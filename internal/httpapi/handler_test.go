package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AtharvaWandhare/synapse/internal/auth"
	"github.com/AtharvaWandhare/synapse/internal/catalog"
	"github.com/AtharvaWandhare/synapse/internal/feed"
	"github.com/AtharvaWandhare/synapse/internal/httpapi"
	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/profile"
	"github.com/AtharvaWandhare/synapse/internal/scoring"
	"github.com/AtharvaWandhare/synapse/internal/store/memory"
)

var (
	seeker  = model.Identity{UserID: "seeker-s", Role: model.RoleJobSeeker}
	company = model.Identity{UserID: "company-c", Role: model.RoleCompany}
)

func newServer(t *testing.T, resolver *auth.Resolver) http.Handler {
	t.Helper()
	st := memory.New()
	h := httpapi.NewHandler(httpapi.Services{
		Ledger:   ledger.NewService(st, nil, nil),
		Catalog:  catalog.NewService(st, nil),
		Feed:     feed.NewSelector(st, nil),
		Profiles: profile.NewService(st),
		Scores:   scoring.NewRecomputer(st, scoring.NewLocalScorer(), nil, time.Second, 2),
	}, resolver, nil)
	return httpapi.NewRouter(h, nil)
}

func gatewayServer(t *testing.T) http.Handler {
	return newServer(t, auth.NewResolver(nil, true))
}

func do(t *testing.T, srv http.Handler, method, path string, as *model.Identity, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set(auth.HeaderUserID, as.UserID)
		req.Header.Set(auth.HeaderUserRole, string(as.Role))
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, code, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["code"]
}

func createJob(t *testing.T, srv http.Handler, title string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/jobs", &company, map[string]any{
		"title":        title,
		"description":  "Build Go services on Postgres",
		"requirements": "go postgres redis",
	})
	expect(t, rec, http.StatusCreated)
	return decode[model.JobPosting](t, rec).ID
}

func TestHealth(t *testing.T) {
	srv := gatewayServer(t)
	rec := do(t, srv, http.MethodGet, "/health", nil, nil)
	expect(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

func TestSwipeFlow(t *testing.T) {
	srv := gatewayServer(t)

	expect(t, do(t, srv, http.MethodPut, "/company", &company, map[string]string{"companyName": "Acme"}), http.StatusOK)
	jobID := createJob(t, srv, "Backend Engineer")

	rec := do(t, srv, http.MethodGet, "/next-job", &seeker, nil)
	expect(t, rec, http.StatusOK)
	card := decode[model.JobCard](t, rec)
	if card.JobID != jobID || card.Company != "Acme" {
		t.Fatalf("card = %+v", card)
	}

	rec = do(t, srv, http.MethodPost, "/swipe", &seeker, map[string]string{"jobId": jobID, "decision": "like"})
	expect(t, rec, http.StatusCreated)
	matchID := decode[map[string]string](t, rec)["matchId"]
	if matchID == "" {
		t.Fatal("missing matchId")
	}

	rec = do(t, srv, http.MethodPost, "/swipe", &seeker, map[string]string{"jobId": jobID, "decision": "dislike"})
	expect(t, rec, http.StatusConflict)
	if got := errorCode(t, rec); got != "conflict" {
		t.Fatalf("code = %q", got)
	}

	rec = do(t, srv, http.MethodGet, "/next-job", &seeker, nil)
	expect(t, rec, http.StatusNotFound)
	if got := errorCode(t, rec); got != "feed_exhausted" {
		t.Fatalf("code = %q, want feed_exhausted", got)
	}

	rec = do(t, srv, http.MethodGet, "/matches", &seeker, nil)
	expect(t, rec, http.StatusOK)
	if views := decode[[]model.MatchView](t, rec); len(views) != 1 || views[0].Match.ID != matchID {
		t.Fatalf("matches = %+v", views)
	}
}

func TestApplicationStatusEndpoint(t *testing.T) {
	srv := gatewayServer(t)
	jobID := createJob(t, srv, "Data Engineer")
	rec := do(t, srv, http.MethodPost, "/swipe", &seeker, map[string]string{"jobId": jobID, "decision": "like"})
	expect(t, rec, http.StatusCreated)
	path := "/matches/" + decode[map[string]string](t, rec)["matchId"] + "/status"

	cases := []struct {
		name   string
		as     model.Identity
		status string
		want   int
	}{
		{"seeker cannot accept", seeker, "accepted", http.StatusForbidden},
		{"unknown status", company, "hired", http.StatusBadRequest},
		{"company accepts", company, "accepted", http.StatusOK},
		{"accept again is a no-op", company, "accepted", http.StatusOK},
		{"reject after accept", company, "rejected", http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			as := tc.as
			expect(t, do(t, srv, http.MethodPut, path, &as, map[string]string{"newStatus": tc.status}), tc.want)
		})
	}

	rec = do(t, srv, http.MethodPut, "/matches/missing/status", &company, map[string]string{"newStatus": "accepted"})
	expect(t, rec, http.StatusNotFound)

	rec = do(t, srv, http.MethodPut, path, &company, map[string]string{})
	expect(t, rec, http.StatusBadRequest)
}

func TestReapplyEndpoint(t *testing.T) {
	srv := gatewayServer(t)
	jobID := createJob(t, srv, "SRE")

	expect(t, do(t, srv, http.MethodPost, "/swipe", &seeker, map[string]string{"jobId": jobID, "decision": "dislike"}), http.StatusNoContent)

	rec := do(t, srv, http.MethodGet, "/matches?filter=skipped", &seeker, nil)
	expect(t, rec, http.StatusOK)
	if skipped := decode[[]model.MatchView](t, rec); len(skipped) != 1 || skipped[0].Match != nil {
		t.Fatalf("skipped = %+v", skipped)
	}

	expect(t, do(t, srv, http.MethodPost, "/jobs/"+jobID+"/reapply", &seeker, nil), http.StatusCreated)
	expect(t, do(t, srv, http.MethodPost, "/jobs/"+jobID+"/reapply", &seeker, nil), http.StatusOK)

	rec = do(t, srv, http.MethodGet, "/applicants?job="+jobID, &company, nil)
	expect(t, rec, http.StatusOK)
	if apps := decode[[]model.Applicant](t, rec); len(apps) != 1 {
		t.Fatalf("applicants = %d, want 1", len(apps))
	}
}

func TestJobLifecycleEndpoints(t *testing.T) {
	srv := gatewayServer(t)
	jobID := createJob(t, srv, "Frontend Engineer")

	rec := do(t, srv, http.MethodPut, "/jobs/"+jobID, &company, map[string]string{"title": "Senior Frontend Engineer"})
	expect(t, rec, http.StatusOK)
	if got := decode[model.JobPosting](t, rec).Title; got != "Senior Frontend Engineer" {
		t.Fatalf("title = %q", got)
	}

	rec = do(t, srv, http.MethodPut, "/jobs/"+jobID+"/applications", &company, map[string]bool{"closed": true})
	expect(t, rec, http.StatusOK)
	if !decode[model.JobPosting](t, rec).ApplicationsClosed {
		t.Fatal("applications not closed")
	}
	expect(t, do(t, srv, http.MethodGet, "/next-job", &seeker, nil), http.StatusNotFound)
	expect(t, do(t, srv, http.MethodPut, "/jobs/"+jobID+"/applications", &company, map[string]string{}), http.StatusBadRequest)

	rival := model.Identity{UserID: "company-r", Role: model.RoleCompany}
	expect(t, do(t, srv, http.MethodDelete, "/jobs/"+jobID, &rival, nil), http.StatusForbidden)
	expect(t, do(t, srv, http.MethodDelete, "/jobs/"+jobID, &company, nil), http.StatusOK)
	expect(t, do(t, srv, http.MethodGet, "/jobs/"+jobID, &company, nil), http.StatusNotFound)

	rec = do(t, srv, http.MethodGet, "/dashboard", &company, nil)
	expect(t, rec, http.StatusOK)
	if d := decode[model.Dashboard](t, rec); d.TotalJobs != 0 {
		t.Fatalf("dashboard = %+v", d)
	}
}

func TestRecomputeScoreEndpoint(t *testing.T) {
	srv := gatewayServer(t)
	jobID := createJob(t, srv, "Go Developer")
	expect(t, do(t, srv, http.MethodPut, "/profile", &seeker, map[string]any{
		"profileText": "Go developer with Postgres and Redis experience",
		"skills":      []string{"go", "postgres"},
	}), http.StatusOK)

	rec := do(t, srv, http.MethodPost, "/swipe", &seeker, map[string]string{"jobId": jobID, "decision": "like"})
	matchID := decode[map[string]string](t, rec)["matchId"]

	rec = do(t, srv, http.MethodPost, "/matches/"+matchID+"/recompute-score", &seeker, nil)
	expect(t, rec, http.StatusOK)
	m := decode[model.Match](t, rec)
	if m.CompatibilityScore == nil || *m.CompatibilityScore < 0 || *m.CompatibilityScore > 100 {
		t.Fatalf("score = %v", m.CompatibilityScore)
	}

	rec = do(t, srv, http.MethodPost, "/jobs/"+jobID+"/recompute-all-scores", &company, nil)
	expect(t, rec, http.StatusOK)
	if res := decode[scoring.BulkResult](t, rec); len(res.Scores) != 1 || len(res.Failures) != 0 {
		t.Fatalf("bulk = %+v", res)
	}
}

func TestAuthenticationAndRouting(t *testing.T) {
	srv := gatewayServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		as     *model.Identity
		want   int
	}{
		{"no credentials", http.MethodGet, "/next-job", nil, http.StatusUnauthorized},
		{"company has no feed", http.MethodGet, "/next-job", &company, http.StatusUnauthorized},
		{"other seeker feed", http.MethodGet, "/next-job?seeker=seeker-t", &seeker, http.StatusForbidden},
		{"wrong method", http.MethodGet, "/swipe", &seeker, http.StatusMethodNotAllowed},
		{"unknown match action", http.MethodPost, "/matches/m1/archive", &seeker, http.StatusNotFound},
		{"too deep", http.MethodGet, "/jobs/a/b/c", &company, http.StatusNotFound},
		{"seeker lists applicants", http.MethodGet, "/applicants", &seeker, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expect(t, do(t, srv, tc.method, tc.path, tc.as, nil), tc.want)
		})
	}

	bad := httptest.NewRequest(http.MethodPost, "/swipe", bytes.NewBufferString("{"))
	bad.Header.Set(auth.HeaderUserID, seeker.UserID)
	bad.Header.Set(auth.HeaderUserRole, string(seeker.Role))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, bad)
	expect(t, rec, http.StatusBadRequest)
}

func TestBearerToken(t *testing.T) {
	tokens, err := auth.NewJWTAuthenticator("test-secret-test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	srv := newServer(t, auth.NewResolver(tokens, false))
	token, err := tokens.Issue(seeker)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/matches", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	expect(t, rec, http.StatusOK)

	// Gateway headers are ignored when not trusted.
	expect(t, do(t, srv, http.MethodGet, "/matches", &seeker, nil), http.StatusUnauthorized)
}
