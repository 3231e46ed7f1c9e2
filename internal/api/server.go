// Package api exposes the public operations surface spec.md §6 names
// (create/list/get/edit/delete experiment; run/complete/abort
// experiment; list/get/register/heartbeat worker; get progress;
// authenticate by bearer token) over HTTP, plus a webhook endpoint that
// dispatches into the Platform-Issue Adapter registry (C9).
//
// Grounded nearly directly on the teacher's internal/api/server.go:
// chi.NewRouter(), r.Route("/api", ...), the writeJSON helper, and the
// verify-then-dispatch shape of its webhook handler — generalized here
// from GitHub-release events to the experiment/worker operations surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LuuuXXX/crater-ohos/internal/apperr"
	"github.com/LuuuXXX/crater-ohos/internal/auth"
	"github.com/LuuuXXX/crater-ohos/internal/experiment"
	"github.com/LuuuXXX/crater-ohos/internal/pkgselect"
	"github.com/LuuuXXX/crater-ohos/internal/platform"
	"github.com/LuuuXXX/crater-ohos/internal/progress"
	"github.com/LuuuXXX/crater-ohos/internal/result"
	"github.com/LuuuXXX/crater-ohos/internal/toolchain"
	"github.com/LuuuXXX/crater-ohos/internal/worker"
)

// Server wires the Experiment/Worker registries, the Result Store, the
// token Registry, and the Platform-Issue Adapter registry behind one
// chi.Router.
type Server struct {
	experiments *experiment.Registry
	workers     *worker.Registry
	results     *result.Store
	tokens      *auth.Registry
	platforms   *platform.Registry
	resolver    *pkgselect.Resolver
	log         *log.Logger
}

func New(experiments *experiment.Registry, workers *worker.Registry, results *result.Store, tokens *auth.Registry, platforms *platform.Registry, resolver *pkgselect.Resolver, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "crater ", log.LstdFlags|log.LUTC)
	}
	return &Server{experiments: experiments, workers: workers, results: results, tokens: tokens, platforms: platforms, resolver: resolver, log: logger}
}

type ctxKey int

const tokenCtxKey ctxKey = 0

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/experiments", func(r chi.Router) {
			r.With(s.require(auth.ReadExperiments)).Get("/", s.handleListExperiments)
			r.With(s.require(auth.WriteExperiments)).Post("/", s.handleCreateExperiment)

			r.Route("/{name}", func(r chi.Router) {
				r.With(s.require(auth.ReadExperiments)).Get("/", s.handleGetExperiment)
				r.With(s.require(auth.WriteExperiments)).Patch("/", s.handleEditExperiment)
				r.With(s.require(auth.WriteExperiments)).Delete("/", s.handleDeleteExperiment)
				r.With(s.require(auth.WriteExperiments)).Post("/run", s.handleRunExperiment)
				r.With(s.require(auth.WriteExperiments)).Post("/complete", s.handleCompleteExperiment)
				r.With(s.require(auth.WriteExperiments)).Post("/abort", s.handleAbortExperiment)
				r.With(s.require(auth.ReadExperiments)).Get("/progress", s.handleProgress)
			})
		})

		r.Route("/workers", func(r chi.Router) {
			r.With(s.require(auth.ReadExperiments)).Get("/", s.handleListWorkers)
			r.With(s.require(auth.ManageWorkers)).Post("/", s.handleRegisterWorker)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.require(auth.ReadExperiments)).Get("/", s.handleGetWorker)
				r.With(s.require(auth.ManageWorkers)).Post("/heartbeat", s.handleHeartbeat)
			})
		})

		r.Post("/webhooks/{platform}", s.handleWebhook)
	})

	return r
}

// authenticate requires a bearer token on every /api route; webhook
// delivery authenticates itself via HMAC signature instead, so it is
// exempted below.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebhookPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		value := bearerToken(r)
		if value == "" {
			writeError(w, apperr.New(apperr.Unauthorized, "api: missing bearer token"))
			return
		}
		tok, err := s.tokens.Validate(r.Context(), value)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), tokenCtxKey, tok)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isWebhookPath(path string) bool {
	const prefix = "/api/webhooks/"
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return ""
	}
	return h[len(prefix):]
}

// require builds middleware failing with apperr.Forbidden unless the
// already-authenticated token allows p.
func (s *Server) require(p auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, _ := r.Context().Value(tokenCtxKey).(auth.Token)
			if err := auth.RequirePermission(tok, p); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type createExperimentRequest struct {
	Name             string                    `json:"name"`
	ToolchainA       string                    `json:"toolchain_a"`
	ToolchainB       string                    `json:"toolchain_b"`
	Mode             string                    `json:"mode"`
	CapLints         string                    `json:"cap_lints"`
	Priority         int                       `json:"priority"`
	PackageSelection string                    `json:"package_selection"`
	CallbackURL      string                    `json:"callback_url"`
	IgnoreBlacklist  bool                      `json:"ignore_blacklist"`
	Requirement      string                    `json:"requirement"`
	PlatformIssue    *experiment.PlatformIssue `json:"platform_issue,omitempty"`
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.BadRequestf("api: %v", err))
		return
	}

	tcA, err := toolchain.Parse(req.ToolchainA)
	if err != nil {
		writeError(w, apperr.BadRequestf("api: toolchain_a: %v", err))
		return
	}
	tcB, err := toolchain.Parse(req.ToolchainB)
	if err != nil {
		writeError(w, apperr.BadRequestf("api: toolchain_b: %v", err))
		return
	}
	mode, err := experiment.ParseMode(req.Mode)
	if err != nil {
		writeError(w, apperr.BadRequestf("api: %v", err))
		return
	}
	cap, err := experiment.ParseCapLints(req.CapLints)
	if err != nil {
		writeError(w, apperr.BadRequestf("api: %v", err))
		return
	}
	sel, err := pkgselect.ParseSelection(req.PackageSelection)
	if err != nil {
		writeError(w, apperr.BadRequestf("api: package_selection: %v", err))
		return
	}

	exp, err := s.experiments.Create(r.Context(), experiment.CreateRequest{
		Name:             req.Name,
		ToolchainA:       tcA,
		ToolchainB:       tcB,
		Mode:             mode,
		CapLints:         cap,
		Priority:         req.Priority,
		PackageSelection: sel,
		PlatformIssue:    req.PlatformIssue,
		CallbackURL:      req.CallbackURL,
		IgnoreBlacklist:  req.IgnoreBlacklist,
		Requirement:      req.Requirement,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	exps, err := s.experiments.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exps)
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.experiments.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

type editExperimentRequest struct {
	Name             *string `json:"name"`
	Mode             *string `json:"mode"`
	PackageSelection *string `json:"package_selection"`
	CallbackURL      *string `json:"callback_url"`
	Priority         *int    `json:"priority"`
}

func (s *Server) handleEditExperiment(w http.ResponseWriter, r *http.Request) {
	var req editExperimentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.BadRequestf("api: %v", err))
		return
	}
	patch := experiment.EditPatch{Name: req.Name, CallbackURL: req.CallbackURL, Priority: req.Priority}
	if req.Mode != nil {
		mode, err := experiment.ParseMode(*req.Mode)
		if err != nil {
			writeError(w, apperr.BadRequestf("api: %v", err))
			return
		}
		patch.Mode = &mode
	}
	if req.PackageSelection != nil {
		sel, err := pkgselect.ParseSelection(*req.PackageSelection)
		if err != nil {
			writeError(w, apperr.BadRequestf("api: %v", err))
			return
		}
		patch.PackageSelection = &sel
	}

	exp, err := s.experiments.Edit(r.Context(), chi.URLParam(r, "name"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	if err := s.experiments.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.experiments.Run(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleCompleteExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.experiments.Complete(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleAbortExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.experiments.Abort(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

type progressResponse struct {
	Completed      int      `json:"completed"`
	Total          int      `json:"total"`
	Percentage     float64  `json:"percentage"`
	AvgTaskSeconds *float64 `json:"avg_task_seconds,omitempty"`
	ETASeconds     *float64 `json:"eta_seconds,omitempty"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	exp, err := s.experiments.Get(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	total := 0
	if s.resolver != nil {
		pkgs, err := s.resolver.Resolve(exp.PackageSelection)
		if err == nil {
			total = len(pkgs)
		}
	}
	completed, err := s.results.Count(r.Context(), name)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, err, "api: count results for %s", name))
		return
	}

	resp := progressResponse{
		Completed:  completed,
		Total:      total,
		Percentage: progress.Percentage(completed, total),
	}
	if avg, ok := progress.AvgTaskSeconds(exp.StartedAt, time.Now().UTC(), completed); ok {
		resp.AvgTaskSeconds = &avg
		if eta, ok := progress.ETASeconds(avg, ok, completed, total); ok {
			resp.ETASeconds = &eta
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerWorkerRequest struct {
	DisplayName  string   `json:"display_name"`
	Capabilities []string `json:"capabilities"`
}

func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req registerWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.BadRequestf("api: %v", err))
		return
	}
	wk, err := s.workers.Register(r.Context(), req.DisplayName, req.Capabilities)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wk)
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.workers.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	wk, err := s.workers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.workers.Heartbeat(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "platform")
	adapter, ok := s.platforms.Get(tag)
	if !ok {
		http.Error(w, "unknown platform", http.StatusNotFound)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("X-Hub-Signature-256")
	if sig == "" {
		sig = r.Header.Get("X-Webhook-Signature")
	}
	if !adapter.VerifyWebhookSignature(body, sig) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	s.log.Printf("webhook accepted platform=%s bytes=%d", tag, len(body))
	w.WriteHeader(http.StatusAccepted)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := httpStatus(code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": string(code), "error": err.Error()})
}

func httpStatus(code apperr.Code) int {
	switch code {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.AlreadyExists:
		return http.StatusConflict
	case apperr.InvalidState:
		return http.StatusConflict
	case apperr.BadRequest:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
