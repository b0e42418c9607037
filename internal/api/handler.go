package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/coordinator"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// maxBatchSize bounds one POST /analyze/batch request.
const maxBatchSize = 100

// Handler holds dependencies for API handlers.
type Handler struct {
	coordinator *coordinator.Coordinator
	history     domain.HistoryStore
	cache       domain.Cache
	bus         domain.EventBus
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(c *coordinator.Coordinator, history domain.HistoryStore, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		coordinator: c,
		history:     history,
		cache:       cache,
		bus:         bus,
		version:     version,
	}
}

// Analyze handles POST /analyze: score one transaction synchronously.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	verdict, err := h.coordinator.Analyze(r.Context(), &tx)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("analysis failed", "txId", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

// BatchRequest is the request body for POST /analyze/batch.
type BatchRequest struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// BatchResponse is the response for POST /analyze/batch. Verdicts are
// in input order; invalid inputs carry an error classification.
type BatchResponse struct {
	Verdicts []domain.Verdict `json:"verdicts"`
	Count    int              `json:"count"`
	Errors   int              `json:"errors"`
}

// AnalyzeBatch handles POST /analyze/batch.
func (h *Handler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions is required",
		})
		return
	}
	if len(req.Transactions) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "batch exceeds maximum size",
		})
		return
	}

	verdicts := h.coordinator.AnalyzeBatch(r.Context(), req.Transactions)

	errCount := 0
	for i := range verdicts {
		if verdicts[i].Classification == domain.ClassError {
			errCount++
		}
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		Verdicts: verdicts,
		Count:    len(verdicts),
		Errors:   errCount,
	})
}

// GetVerdict handles GET /verdicts/{id}.
func (h *Handler) GetVerdict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "verdict id is required",
		})
		return
	}

	verdict, err := h.history.GetVerdict(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "verdict not found",
			})
			return
		}
		slog.Error("verdict lookup failed", "id", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

// GetTransaction handles GET /transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	tx, err := h.history.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("transaction lookup failed", "id", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ProfileResponse is the response for GET /users/{id}/profile.
type ProfileResponse struct {
	UserID string              `json:"userId"`
	Stats  domain.ProfileStats `json:"stats"`
}

// GetProfile handles GET /users/{id}/profile. It returns derived
// statistics, not raw history.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user id is required",
		})
		return
	}

	profile, err := h.history.GetProfile(r.Context(), id)
	if err != nil {
		slog.Error("profile lookup failed", "userId", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history unavailable",
		})
		return
	}

	snapshot := profile.Snapshot()
	writeJSON(w, http.StatusOK, ProfileResponse{
		UserID: id,
		Stats:  snapshot.Stats,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.history != nil {
		if err := h.history.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
