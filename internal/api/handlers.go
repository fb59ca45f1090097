// Package api is the customer/operator-facing HTTP surface of the kiosk.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"kiosk-system/internal/cache"
	"kiosk-system/internal/domain"
	"kiosk-system/internal/kiosk"
)

type Handler struct {
	mgr   *kiosk.Manager
	cache *cache.SnapshotCache // nil when running without Redis
	log   *logrus.Entry
}

func NewHandler(mgr *kiosk.Manager, snap *cache.SnapshotCache, log *logrus.Entry) *Handler {
	return &Handler{mgr: mgr, cache: snap, log: log}
}

// Router wires all kiosk routes.
func (h *Handler) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.SubmitOrder)
	mux.HandleFunc("GET /orders/{order_id}", h.GetOrder)
	mux.HandleFunc("DELETE /orders/{order_id}", h.CancelOrder)
	mux.HandleFunc("POST /orders/{order_id}/complete", h.CompleteOrder)
	mux.HandleFunc("POST /orders/{order_id}/fail", h.FailOrder)
	mux.HandleFunc("POST /queue/advance", h.Advance)
	mux.HandleFunc("GET /queue/status", h.QueueStatus)
	mux.HandleFunc("POST /queue/pause", h.Pause)
	mux.HandleFunc("POST /queue/resume", h.Resume)
	mux.HandleFunc("POST /queue/clear", h.Clear)
	return mux
}

type submitOrderRequest struct {
	CustomerName string        `json:"customer_name"`
	Items        []domain.Item `json:"items"`
}

type submitOrderResponse struct {
	OrderID             string     `json:"order_id"`
	Status              string     `json:"status"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	o, err := h.mgr.SubmitOrder(r.Context(), req.CustomerName, req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitOrderResponse{
		OrderID:             o.ID,
		Status:              string(o.Status),
		EstimatedCompletion: o.EstimatedCompletion,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("order_id")
	o, pos, err := h.mgr.Lookup(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":             o.ID,
		"status":               o.Status,
		"position":             pos,
		"submitted_at":         o.SubmittedAt,
		"estimated_completion": o.EstimatedCompletion,
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.CancelOrder(r.Context(), r.PathValue("order_id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("order_id")
	done, estimates, err := h.mgr.FinishCurrent(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":         done.ID,
		"status":           done.Status,
		"duration_seconds": done.Duration.Seconds(),
		"estimates":        estimatesJSON(estimates),
	})
}

type failOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) FailOrder(w http.ResponseWriter, r *http.Request) {
	var req failOrderRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "unspecified failure"
	}
	if err := h.mgr.FailCurrent(r.Context(), r.PathValue("order_id"), req.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	o, err := h.mgr.Advance(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":             o.ID,
		"status":               o.Status,
		"estimated_completion": o.EstimatedCompletion,
	})
}

func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if body, ok, err := h.cache.Get(r.Context()); err == nil && ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
	}
	snap := h.mgr.Status()
	body, err := cache.Encode(snap)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "encode_error", err.Error())
		return
	}
	if h.cache != nil {
		h.cache.Store(r.Context(), snap)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.mgr.Pause(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.mgr.Resume(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.mgr.Clear(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": n})
}

func estimatesJSON(in map[string]time.Time) map[string]string {
	out := make(map[string]string, len(in))
	for id, at := range in {
		out[id] = at.UTC().Format(time.RFC3339)
	}
	return out
}

// writeError maps domain errors to problem responses. Everything recoverable
// stays 4xx; only collaborator failures become 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code, typ := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, domain.ErrValidation):
		code, typ = http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		code, typ = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDuplicateOrder):
		code, typ = http.StatusConflict, "duplicate_order"
	case errors.Is(err, domain.ErrEmptyQueue):
		code, typ = http.StatusConflict, "empty_queue"
	case errors.Is(err, domain.ErrResourceBusy):
		code, typ = http.StatusConflict, "resource_busy"
	case errors.Is(err, domain.ErrInvalidState):
		code, typ = http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrPaused):
		code, typ = http.StatusConflict, "queue_paused"
	}
	if code == http.StatusInternalServerError {
		h.log.WithError(err).WithField("action", "request_failed").Error("internal error")
	}
	writeProblem(w, code, typ, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem emits the simplified problem+json error shape.
func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	writeJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}
