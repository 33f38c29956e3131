// Package grpcserver implements the MatchingService gRPC server.
//
// It delegates all business logic to the ledger, feed and scoring services
// and handles only the transport concerns: metadata extraction, error
// mapping, and conversion between domain values and google.protobuf.Struct
// messages.
package grpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/auth"
	"github.com/AtharvaWandhare/synapse/internal/feed"
	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/scoring"
)

// Server implements MatchingServer.
type Server struct {
	ledger   *ledger.Service
	feed     *feed.Selector
	scores   *scoring.Recomputer
	identity *auth.Resolver
}

var _ MatchingServer = (*Server)(nil)

// NewServer constructs a Server backed by the given services.
func NewServer(l *ledger.Service, f *feed.Selector, scores *scoring.Recomputer, identity *auth.Resolver) *Server {
	return &Server{ledger: l, feed: f, scores: scores, identity: identity}
}

// New returns a grpc.Server with the matching and health services
// registered and a zap access-log interceptor installed.
func New(s *Server, log *zap.Logger) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary(log.Named("grpc"))))
	RegisterMatchingServer(gs, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// ─── RPC implementations ──────────────────────────────────────────────────────

type nextJobRequest struct {
	SeekerID string `json:"seekerId"`
}

type swipeRequest struct {
	JobID    string `json:"jobId"`
	Decision string `json:"decision"`
}

type matchRequest struct {
	MatchID string `json:"matchId"`
}

type jobRequest struct {
	JobID string `json:"jobId"`
}

type statusRequest struct {
	MatchID   string `json:"matchId"`
	NewStatus string `json:"newStatus"`
}

// NextJob returns the caller's next unseen job card.
func (s *Server) NextJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var in nextJobRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	card, err := s.feed.NextJob(ctx, id, in.SeekerID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(card)
}

// RecordSwipe records a like or dislike.
func (s *Server) RecordSwipe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var in swipeRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	res, err := s.ledger.RecordSwipe(ctx, id, in.JobID, in.Decision)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(res)
}

// HideMatch removes a match from the caller's default listing.
func (s *Server) HideMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.setHidden(ctx, req, true)
}

// UnhideMatch restores a hidden match.
func (s *Server) UnhideMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.setHidden(ctx, req, false)
}

func (s *Server) setHidden(ctx context.Context, req *structpb.Struct, hidden bool) (*structpb.Struct, error) {
	id, err := s.identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var in matchRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	var m *model.Match
	if hidden {
		m, err = s.ledger.HideMatch(ctx, id, in.MatchID)
	} else {
		m, err = s.ledger.UnhideMatch(ctx, id, in.MatchID)
	}
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(m)
}

// Reapply turns an earlier dislike into a like.
func (s *Server) Reapply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var in jobRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	m, created, err := s.ledger.Reapply(ctx, id, in.JobID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(map[string]any{"match": m, "created": created})
}

// SetApplicationStatus moves a match through the status lattice.
func (s *Server) SetApplicationStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var in statusRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	m, err := s.ledger.SetApplicationStatus(ctx, id, in.MatchID, in.NewStatus)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(m)
}

// RecomputeScore rescores one match.
func (s *Server) RecomputeScore(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var in matchRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	m, err := s.scores.RecomputeScore(ctx, id, in.MatchID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(m)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// identityFromCtx resolves the caller from the authorization bearer token or
// the x-user-id / x-user-role metadata forwarded by the gateway.
func (s *Server) identityFromCtx(ctx context.Context) (model.Identity, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return model.Identity{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	first := func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	id, err := s.identity.FromHeaders(ctx,
		first(auth.HeaderAuthorization), first(auth.HeaderUserID), first(auth.HeaderUserRole))
	if err != nil {
		return model.Identity{}, toGRPCError(err)
	}
	return id, nil
}

func decodeRequest(req *structpb.Struct, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           dst,
	})
	if err != nil {
		return status.Error(codes.Internal, "internal server error")
	}
	if err := dec.Decode(req.AsMap()); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

// toStruct converts v through its JSON form, so field names match the HTTP
// API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	msg := apperr.Message(err)
	switch apperr.KindOf(err) {
	case apperr.KindUnauthorized:
		return status.Error(codes.Unauthenticated, msg)
	case apperr.KindForbidden:
		return status.Error(codes.PermissionDenied, msg)
	case apperr.KindNotFound, apperr.KindExhausted:
		return status.Error(codes.NotFound, msg)
	case apperr.KindConflict:
		return status.Error(codes.FailedPrecondition, msg)
	case apperr.KindInvalid:
		return status.Error(codes.InvalidArgument, msg)
	case apperr.KindUpstream:
		return status.Error(codes.Unavailable, msg)
	}
	return status.Error(codes.Internal, "internal server error")
}

func logUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if code == codes.Internal || code == codes.Unknown {
			log.Error("grpc request", append(fields, zap.Error(err))...)
		} else {
			log.Info("grpc request", fields...)
		}
		return resp, err
	}
}
