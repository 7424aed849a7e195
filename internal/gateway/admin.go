package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"schemagate/pkg/secrets"
)

// Evictor is the local cache surface the flush endpoint drives.
type Evictor interface {
	EvictDatabase(databaseID string) int
	FlushAll()
}

// Publisher broadcasts a flush so other gateway processes evict too.
type Publisher interface {
	Publish(ctx context.Context, databaseID string) error
}

// AdminHandler serves the administrative flush endpoint. It is disabled
// entirely when no secret hash is configured.
type AdminHandler struct {
	secretHash string
	cache      Evictor
	bus        Publisher
	logger     *slog.Logger
}

// NewAdminHandler wires the flush endpoint. bus may be nil when no pub/sub
// transport is configured; flushes then stay local to this process.
func NewAdminHandler(secretHash string, cache Evictor, bus Publisher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		secretHash: secretHash,
		cache:      cache,
		bus:        bus,
		logger:     logger,
	}
}

type flushRequest struct {
	DatabaseID string `json:"databaseId"`
}

// HandleFlush evicts cache entries for one database id, or everything when
// the body carries no id. The eviction is applied locally first, then
// published so every other process follows.
func (h *AdminHandler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	if h.secretHash == "" {
		http.Error(w, "administrative surface disabled", http.StatusNotFound)
		return
	}
	if !h.authorized(r) {
		h.logger.Warn("flush rejected, bad admin credential", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req flushRequest
	if r.Body != nil {
		// An empty or absent body means flush everything.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var evicted int
	if req.DatabaseID == "" {
		h.cache.FlushAll()
		h.logger.Info("flushed all cache entries", "trigger", "admin")
	} else {
		evicted = h.cache.EvictDatabase(req.DatabaseID)
		h.logger.Info("flushed tenant cache entries",
			"trigger", "admin",
			"database_id", req.DatabaseID,
			"entries", evicted,
		)
	}

	if h.bus != nil {
		if err := h.bus.Publish(r.Context(), req.DatabaseID); err != nil {
			// The local eviction already happened; other processes stay
			// stale until their TTLs, so report the partial failure.
			h.logger.Error("flush publish failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"flushed": true,
				"entries": evicted,
				"error":   "broadcast failed, other processes not notified",
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"flushed": true,
		"entries": evicted,
	})
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return false
	}
	secret := strings.TrimSpace(header[7:])
	return secrets.Verify(secret, h.secretHash) == nil
}
