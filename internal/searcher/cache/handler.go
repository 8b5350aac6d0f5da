package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/PippiShao/IMDB/pkg/resilience"
)

type invalidateResponse struct {
	Fingerprint string `json:"fingerprint"`
	KeysDeleted int64  `json:"keys_deleted"`
}

// InvalidateHandler clears the cache's key space on POST.
type InvalidateHandler struct {
	cache  *QueryCache
	logger *slog.Logger
}

func NewInvalidateHandler(c *QueryCache) *InvalidateHandler {
	return &InvalidateHandler{
		cache:  c,
		logger: slog.Default().With("component", "cache-admin"),
	}
}

func (h *InvalidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err, "keys_deleted", deleted)
		status := http.StatusBadGateway
		if errors.Is(err, resilience.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := invalidateResponse{Fingerprint: h.cache.Fingerprint(), KeysDeleted: deleted}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write invalidate response", "error", err)
	}
}
