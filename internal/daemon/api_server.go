package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"curator/internal/api"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}
	srv.server = &http.Server{
		Handler:           newRouter(d, cfg.Paths.APIToken, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type handlers struct {
	daemon *Daemon
	logger *slog.Logger
}

// newRouter serves the host webhook at /webhook and the operator API under
// /api. Only the API routes require the bearer token.
func newRouter(d *Daemon, token string, logger *slog.Logger) *mux.Router {
	h := &handlers{daemon: d, logger: logging.NewComponentLogger(logger, "api-server")}
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.HandleFunc("/webhook", h.handleWebhook).Methods(http.MethodPost)

	sub := r.PathPrefix("/api").Subrouter()
	sub.Use(authMiddleware(token))
	sub.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	sub.HandleFunc("/review", h.handleReviewList).Methods(http.MethodGet)
	sub.HandleFunc("/review/{type}/{id}", h.handleReviewClear).Methods(http.MethodDelete)
	sub.HandleFunc("/reprocess/{hostId}", h.handleReprocess).Methods(http.MethodPost)
	sub.HandleFunc("/scan", h.handleScan).Methods(http.MethodPost)
	return r
}

func (h *handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	target := h.daemon.webhook()
	if target == nil {
		writeError(w, http.StatusServiceUnavailable, "daemon is not running")
		return
	}
	target.ServeHTTP(w, r)
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.daemon.Status(r.Context()))
}

func (h *handlers) handleReviewList(w http.ResponseWriter, r *http.Request) {
	items, err := h.daemon.ListReview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.ReviewListResponse{Items: items})
}

func (h *handlers) handleReviewClear(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	resp, err := h.daemon.ClearReview(r.Context(), vars["type"], vars["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !resp.Removed {
		writeError(w, http.StatusNotFound, "review entry not found")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleReprocess(w http.ResponseWriter, r *http.Request) {
	resp, err := h.daemon.Reprocess(r.Context(), mux.Vars(r)["hostId"], deepParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *handlers) handleScan(w http.ResponseWriter, r *http.Request) {
	deep := deepParam(r)
	started, err := h.daemon.StartScan(deep)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := api.ScanResponse{Started: started, Deep: deep, Message: "library scan started"}
	if !started {
		resp.Message = "a library scan is already running"
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func deepParam(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("deep"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), h.logger).Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrTransientMiss):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: message})
}
