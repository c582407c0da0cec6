package modeler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/avaldria/reportwatch/pkg/errors"
	"github.com/avaldria/reportwatch/pkg/kafka"
	"github.com/avaldria/reportwatch/pkg/logger"
	"github.com/avaldria/reportwatch/pkg/metrics"
	"github.com/avaldria/reportwatch/pkg/redis"
)

const viewCacheKey = "modeler:view"

// Handler serves the view over HTTP with a Redis-backed response cache.
type Handler struct {
	modeler *Modeler
	cache   *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler creates a Handler. cache and m may be nil; the view is then
// rebuilt on every request and no cache metrics are recorded.
func NewHandler(mod *Modeler, cache *redis.Client, ttl time.Duration, m *metrics.Metrics) *Handler {
	return &Handler{
		modeler: mod,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "modeler-handler"),
	}
}

// View handles GET /api/v1/view.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if cached, ok := h.cachedView(ctx); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	rows, err := h.modeler.BuildView(ctx)
	if err != nil {
		log.Error("view build failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "view unavailable")
		return
	}
	if h.metrics != nil {
		h.metrics.ViewRows.Set(float64(len(rows)))
	}
	h.storeView(ctx, rows)
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) cachedView(ctx context.Context) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	data, err := h.cache.Get(ctx, viewCacheKey)
	if err != nil {
		if !redis.IsNilError(err) {
			h.logger.Error("view cache get failed", "error", err)
		}
		if h.metrics != nil {
			h.metrics.ViewCacheMissesTotal.Inc()
		}
		return nil, false
	}
	if h.metrics != nil {
		h.metrics.ViewCacheHitsTotal.Inc()
	}
	return []byte(data), true
}

func (h *Handler) storeView(ctx context.Context, rows []ViewRow) {
	if h.cache == nil {
		return
	}
	data, err := json.Marshal(rows)
	if err != nil {
		h.logger.Error("view cache encode failed", "error", err)
		return
	}
	if err := h.cache.Set(ctx, viewCacheKey, data, h.ttl); err != nil {
		h.logger.Error("view cache set failed", "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// HandleTrigger adapts the Modeler to the extract-complete topic: each
// trigger invalidates the cached view and warms a fresh one.
func HandleTrigger(mod *Modeler, cache *redis.Client) kafka.MessageHandler {
	log := slog.Default().With("component", "modeler-trigger")
	return func(ctx context.Context, key []byte, value []byte) error {
		if cache != nil {
			if _, err := cache.FlushByPattern(ctx, "modeler:*"); err != nil {
				log.Error("view cache invalidation failed", "error", err)
			}
		}
		rows, err := mod.BuildView(ctx)
		if err != nil {
			log.Error("view rebuild failed", "error", err)
			return nil
		}
		log.Info("view rebuilt", "rows", len(rows))
		return nil
	}
}
