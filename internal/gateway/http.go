package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rahul/robodriver/internal/agent"
	"github.com/rahul/robodriver/internal/observability"
	"github.com/rahul/robodriver/pkg/config"
)

const (
	serviceName    = "RoboDriver Automation API"
	serviceVersion = "1.0.0"
	maxBodyBytes   = 1 << 20
)

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Message string `json:"message"`
	// Mode must be "ai" or empty.
	Mode     string `json:"mode,omitempty"`
	MaxSteps *int   `json:"max_steps,omitempty"`
}

// ExecuteResponse carries the run result back to the caller.
type ExecuteResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Mode       string             `json:"mode"`
	StepsTaken int                `json:"steps_taken"`
	RunID      string             `json:"run_id"`
	Status     agent.Status       `json:"status"`
	Reason     agent.AbortReason  `json:"reason,omitempty"`
	ElapsedMS  int64              `json:"elapsed_ms"`
	History    []agent.StepRecord `json:"history"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HTTPServer exposes goal execution over HTTP.
type HTTPServer struct {
	cfg        config.HTTPConfig
	dispatcher *Dispatcher
	modelReady bool
	logger     *zap.Logger
}

func NewHTTPServer(cfg config.HTTPConfig, dispatcher *Dispatcher, modelReady bool, logger *zap.Logger) *HTTPServer {
	if cfg.DefaultMaxSteps <= 0 {
		cfg.DefaultMaxSteps = 15
	}
	if cfg.MaxStepsLimit <= 0 {
		cfg.MaxStepsLimit = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{cfg: cfg, dispatcher: dispatcher, modelReady: modelReady, logger: logger}
}

// Handler returns the routes of the service.
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /execute", h.handleExecute)
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (h *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.cfg.Addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("HTTP gateway listening", zap.String("addr", h.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"version": serviceVersion,
		"endpoints": map[string]string{
			"POST /execute": "Execute a goal in a fresh browser session",
			"GET /health":   "Health check endpoint",
		},
		"modes": map[string]string{
			"ai": "Model-driven goal execution",
		},
	})
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"features": map[string]bool{
			"ai_mode": h.modelReady,
		},
		"runs": observability.GetStatus(),
	})
}

func (h *HTTPServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	goal := strings.TrimSpace(req.Message)
	if goal == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = "ai"
	}
	if mode != "ai" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid mode: %s. Use 'ai'", req.Mode))
		return
	}
	maxSteps := h.cfg.DefaultMaxSteps
	if req.MaxSteps != nil {
		maxSteps = *req.MaxSteps
	}
	if maxSteps < 1 || maxSteps > h.cfg.MaxStepsLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("max_steps must be between 1 and %d", h.cfg.MaxStepsLimit))
		return
	}
	if !h.modelReady {
		writeError(w, http.StatusServiceUnavailable, "AI mode not available: no language model configured")
		return
	}

	log := h.logger.With(zap.String("remote", r.RemoteAddr))
	log.Info("Goal received", zap.String("goal", goal), zap.Int("max_steps", maxSteps))

	res, err := h.dispatcher.Execute(r.Context(), goal, agent.WithMaxSteps(maxSteps))
	if err != nil {
		log.Warn("Goal not started", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{
		Success:    res.Success,
		Message:    res.Message,
		Mode:       mode,
		StepsTaken: res.StepCount,
		RunID:      res.RunID,
		Status:     res.Status,
		Reason:     res.Reason,
		ElapsedMS:  res.ElapsedMS,
		History:    res.History,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Message: msg})
}
