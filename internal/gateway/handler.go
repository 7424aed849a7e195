package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"schemagate/internal/corsgate"
	"schemagate/internal/platform/middleware"
	dErrors "schemagate/pkg/domain-errors"
	httpErrors "schemagate/pkg/http-errors"
)

// Handler serves the request-facing surface: the query endpoint and its
// preflight.
type Handler struct {
	pipeline *Pipeline
	executor Executor
	logger   *slog.Logger
}

func NewHandler(p *Pipeline, exec Executor, logger *slog.Logger) *Handler {
	if exec == nil {
		exec = UnconfiguredExecutor()
	}
	return &Handler{pipeline: p, executor: exec, logger: logger}
}

// HandleQuery admits the request through the pipeline and hands it to the
// execution engine.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	sig := SignalsFromRequest(r)

	handoff, err := h.pipeline.Admit(r.Context(), sig)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	applyCORS(w, handoff.CORS)

	if err := h.executor.Execute(r.Context(), w, r, handoff); err != nil {
		h.writeError(w, r, err)
	}
}

// HandlePreflight answers OPTIONS requests. Preflights always get a 200 so
// the browser can make its own block decision; a denied origin simply
// receives no allow-origin header.
func (h *Handler) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	sig := SignalsFromRequest(r)
	decision := h.pipeline.Preflight(r.Context(), sig)
	applyCORS(w, decision)
	w.WriteHeader(http.StatusOK)
}

func applyCORS(w http.ResponseWriter, d corsgate.Decision) {
	if !d.Allowed {
		return
	}
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", d.AllowOrigin)
	if d.AllowOrigin != "*" {
		header.Add("Vary", "Origin")
	}
	if d.AllowMethods != "" {
		header.Set("Access-Control-Allow-Methods", d.AllowMethods)
	}
	if d.AllowHeaders != "" {
		header.Set("Access-Control-Allow-Headers", d.AllowHeaders)
	}
}

// writeError maps a pipeline failure to a structured, minimal-detail HTTP
// response. Internal identifiers never leave the process.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpErrors.Code(dErrors.CodeOf(err))
	status := httpErrors.ToHTTPStatus(code)

	msg := publicMessage(code)

	h.logger.Warn("request rejected",
		"request_id", middleware.GetRequestID(r.Context()),
		"status", status,
		"code", string(code),
		"error", err,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"error": map[string]string{
			"code":    string(code),
			"message": msg,
		},
	})
}

func publicMessage(code httpErrors.Code) string {
	switch code {
	case httpErrors.CodeNotFound:
		return "not found"
	case httpErrors.CodeUnauthenticated:
		return "authentication required or credential invalid"
	case httpErrors.CodeUnavailable:
		return "temporarily unavailable, try again"
	case httpErrors.CodeBuildFailure:
		return "schema unavailable"
	case httpErrors.CodeInvalidInput:
		return "invalid request"
	default:
		return "internal error"
	}
}
