// Package httpapi exposes the matching operations over JSON/HTTP.
//
// Callers authenticate with a bearer token or, behind the gateway, with the
// x-user-id and x-user-role headers it forwards.
//
// Routes:
//
//	GET    /health                            → liveness
//	GET    /next-job?seeker={id}              → next unseen job card
//	POST   /swipe                             → record like/dislike
//	GET    /matches?filter=all|hidden|skipped → seeker's matches
//	GET    /matches/{id}                      → one match
//	PUT    /matches/{id}/hide|unhide          → toggle visibility
//	PUT    /matches/{id}/status               → move application status
//	POST   /matches/{id}/recompute-score      → rescore one match
//	GET    /jobs, POST /jobs                  → company's postings
//	GET    /jobs/{id}, PUT, DELETE            → one posting
//	PUT    /jobs/{id}/applications            → close or reopen
//	POST   /jobs/{id}/reapply                 → like a skipped job
//	POST   /jobs/{id}/recompute-all-scores    → rescore every match
//	GET    /applicants?job={id}, /dashboard   → company views
//	GET    /profile, PUT /profile             → seeker profile
//	PUT    /company                           → company display profile
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/auth"
	"github.com/AtharvaWandhare/synapse/internal/catalog"
	"github.com/AtharvaWandhare/synapse/internal/feed"
	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/profile"
	"github.com/AtharvaWandhare/synapse/internal/scoring"
)

const maxBodyBytes = 1 << 20

// Services groups the operations the handler dispatches to.
type Services struct {
	Ledger   *ledger.Service
	Catalog  *catalog.Service
	Feed     *feed.Selector
	Profiles *profile.Service
	Scores   *scoring.Recomputer
}

// Handler holds shared dependencies.
type Handler struct {
	svc      Services
	identity *auth.Resolver
	log      *zap.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(svc Services, identity *auth.Resolver, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, identity: identity, log: log.Named("http")}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/next-job", h.authed(h.handleNextJob))
	mux.HandleFunc("/swipe", h.authed(h.handleSwipe))
	mux.HandleFunc("/matches", h.authed(h.handleMatches))
	mux.HandleFunc("/matches/", h.authed(h.handleMatchAction))
	mux.HandleFunc("/jobs", h.authed(h.handleJobs))
	mux.HandleFunc("/jobs/", h.authed(h.handleJobAction))
	mux.HandleFunc("/applicants", h.authed(h.handleApplicants))
	mux.HandleFunc("/dashboard", h.authed(h.handleDashboard))
	mux.HandleFunc("/profile", h.authed(h.handleProfile))
	mux.HandleFunc("/company", h.authed(h.handleCompany))
}

type authedFunc func(w http.ResponseWriter, r *http.Request, id model.Identity)

// authed resolves the caller before dispatching. Unauthenticated requests
// never reach the services.
func (h *Handler) authed(next authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.identity.FromHeaders(r.Context(),
			r.Header.Get(auth.HeaderAuthorization),
			r.Header.Get(auth.HeaderUserID),
			r.Header.Get(auth.HeaderUserRole),
		)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)), id)
	}
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

// handleMatchAction handles /matches/{id} and /matches/{id}/{action}.
func (h *Handler) handleMatchAction(w http.ResponseWriter, r *http.Request, id model.Identity) {
	parts := pathParts(r, "matches")
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.getMatch(w, r, id, parts[0])
	case len(parts) == 2:
		matchID, action := parts[0], parts[1]
		switch {
		case action == "hide" && r.Method == http.MethodPut:
			h.setHidden(w, r, id, matchID, true)
		case action == "unhide" && r.Method == http.MethodPut:
			h.setHidden(w, r, id, matchID, false)
		case action == "status" && r.Method == http.MethodPut:
			h.setStatus(w, r, id, matchID)
		case action == "recompute-score" && r.Method == http.MethodPost:
			h.recomputeScore(w, r, id, matchID)
		default:
			jsonError(w, fmt.Sprintf("unknown action %s %q", r.Method, action), http.StatusNotFound)
		}
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request, id model.Identity) {
	switch r.Method {
	case http.MethodGet:
		jobs, err := h.svc.Catalog.ListJobs(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		jsonOK(w, jobs)
	case http.MethodPost:
		h.createJob(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

// handleJobAction handles /jobs/{id} and /jobs/{id}/{action}.
func (h *Handler) handleJobAction(w http.ResponseWriter, r *http.Request, id model.Identity) {
	parts := pathParts(r, "jobs")
	if len(parts) == 1 {
		jobID := parts[0]
		switch r.Method {
		case http.MethodGet:
			job, err := h.svc.Catalog.GetJob(r.Context(), id, jobID)
			h.respond(w, r, job, err)
		case http.MethodPut:
			h.updateJob(w, r, id, jobID)
		case http.MethodDelete:
			if err := h.svc.Catalog.DeleteJob(r.Context(), id, jobID); err != nil {
				h.fail(w, r, err)
				return
			}
			jsonOK(w, map[string]any{"id": jobID, "deleted": true})
		default:
			methodNotAllowed(w)
		}
		return
	}
	if len(parts) != 2 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	jobID, action := parts[0], parts[1]
	switch {
	case action == "applications" && r.Method == http.MethodPut:
		h.setApplications(w, r, id, jobID)
	case action == "reapply" && r.Method == http.MethodPost:
		h.reapply(w, r, id, jobID)
	case action == "recompute-all-scores" && r.Method == http.MethodPost:
		res, err := h.svc.Scores.RecomputeAllForJob(r.Context(), id, jobID)
		h.respond(w, r, res, err)
	default:
		jsonError(w, fmt.Sprintf("unknown action %s %q", r.Method, action), http.StatusNotFound)
	}
}

// ─── Seeker handlers ──────────────────────────────────────────────────────────

func (h *Handler) handleNextJob(w http.ResponseWriter, r *http.Request, id model.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	card, err := h.svc.Feed.NextJob(r.Context(), id, r.URL.Query().Get("seeker"))
	h.respond(w, r, card, err)
}

func (h *Handler) handleSwipe(w http.ResponseWriter, r *http.Request, id model.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		JobID    string `json:"jobId"`
		Decision string `json:"decision"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.svc.Ledger.RecordSwipe(r.Context(), id, body.JobID, body.Decision)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.Match == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	jsonStatus(w, http.StatusCreated, map[string]string{
		"matchId": res.Match.ID,
		"swipeId": res.Swipe.ID,
	})
}

func (h *Handler) handleMatches(w http.ResponseWriter, r *http.Request, id model.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	views, err := h.svc.Ledger.ListMatches(r.Context(), id, r.URL.Query().Get("filter"))
	h.respond(w, r, views, err)
}

func (h *Handler) getMatch(w http.ResponseWriter, r *http.Request, id model.Identity, matchID string) {
	rec, err := h.svc.Ledger.GetMatch(r.Context(), id, matchID)
	h.respond(w, r, rec, err)
}

func (h *Handler) setHidden(w http.ResponseWriter, r *http.Request, id model.Identity, matchID string, hidden bool) {
	var (
		m   *model.Match
		err error
	)
	if hidden {
		m, err = h.svc.Ledger.HideMatch(r.Context(), id, matchID)
	} else {
		m, err = h.svc.Ledger.UnhideMatch(r.Context(), id, matchID)
	}
	h.respond(w, r, m, err)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, id model.Identity, matchID string) {
	var body struct {
		NewStatus string `json:"newStatus"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if body.NewStatus == "" {
		jsonError(w, "body must contain newStatus", http.StatusBadRequest)
		return
	}
	m, err := h.svc.Ledger.SetApplicationStatus(r.Context(), id, matchID, body.NewStatus)
	h.respond(w, r, m, err)
}

func (h *Handler) recomputeScore(w http.ResponseWriter, r *http.Request, id model.Identity, matchID string) {
	m, err := h.svc.Scores.RecomputeScore(r.Context(), id, matchID)
	h.respond(w, r, m, err)
}

func (h *Handler) reapply(w http.ResponseWriter, r *http.Request, id model.Identity, jobID string) {
	m, created, err := h.svc.Ledger.Reapply(r.Context(), id, jobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	jsonStatus(w, code, m)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request, id model.Identity) {
	switch r.Method {
	case http.MethodGet:
		p, err := h.svc.Profiles.GetSeekerProfile(r.Context(), id)
		h.respond(w, r, p, err)
	case http.MethodPut:
		var in profile.Input
		if err := decodeJSON(r, &in); err != nil {
			h.fail(w, r, err)
			return
		}
		p, err := h.svc.Profiles.UpsertSeekerProfile(r.Context(), id, in)
		h.respond(w, r, p, err)
	default:
		methodNotAllowed(w)
	}
}

// ─── Company handlers ─────────────────────────────────────────────────────────

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request, id model.Identity) {
	var draft catalog.JobDraft
	if err := decodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	job, err := h.svc.Catalog.CreateJob(r.Context(), id, draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, job)
}

func (h *Handler) updateJob(w http.ResponseWriter, r *http.Request, id model.Identity, jobID string) {
	var upd catalog.JobUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	job, err := h.svc.Catalog.UpdateJob(r.Context(), id, jobID, upd)
	h.respond(w, r, job, err)
}

func (h *Handler) setApplications(w http.ResponseWriter, r *http.Request, id model.Identity, jobID string) {
	var body struct {
		Closed *bool `json:"closed"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if body.Closed == nil {
		jsonError(w, "body must contain closed", http.StatusBadRequest)
		return
	}
	job, err := h.svc.Catalog.SetApplicationsClosed(r.Context(), id, jobID, *body.Closed)
	h.respond(w, r, job, err)
}

func (h *Handler) handleApplicants(w http.ResponseWriter, r *http.Request, id model.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	apps, err := h.svc.Ledger.ListApplicants(r.Context(), id, r.URL.Query().Get("job"))
	h.respond(w, r, apps, err)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request, id model.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	d, err := h.svc.Ledger.Dashboard(r.Context(), id)
	h.respond(w, r, d, err)
}

func (h *Handler) handleCompany(w http.ResponseWriter, r *http.Request, id model.Identity) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var c model.Company
	if err := decodeJSON(r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.svc.Catalog.UpdateCompany(r.Context(), id, c)
	h.respond(w, r, out, err)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// pathParts returns the segments after /{prefix}/.
func pathParts(r *http.Request, prefix string) []string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != prefix {
		return nil
	}
	for _, p := range parts[1:] {
		if p == "" {
			return nil
		}
	}
	return parts[1:]
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is required")
		}
		return apperr.Wrap(apperr.KindInvalid, "invalid JSON body", err)
	}
	return nil
}

// respond writes v on success and the classified error otherwise.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	jsonErrorKind(w, apperr.Message(err), kind, code)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound, apperr.KindExhausted:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func methodNotAllowed(w http.ResponseWriter) {
	jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonStatus(w, code, map[string]string{"error": msg})
}

func jsonErrorKind(w http.ResponseWriter, msg string, kind apperr.Kind, code int) {
	jsonStatus(w, code, map[string]string{"error": msg, "code": string(kind)})
}
