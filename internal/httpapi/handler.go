package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strings"

	"qms/walkin-service/internal/hub"
	"qms/walkin-service/internal/models"
	"qms/walkin-service/internal/queue"
	"qms/walkin-service/internal/store"

	"github.com/sirupsen/logrus"
)

// QueueService is the set of queue operations the HTTP layer exposes.
type QueueService interface {
	AddToQueue(ctx context.Context, input queue.AddInput) (models.EntryView, error)
	GetCurrentQueue(ctx context.Context) ([]models.EntryView, error)
	GetQueueEntry(ctx context.Context, entryID string) (models.EntryView, error)
	UpdateQueueEntry(ctx context.Context, entryID string, patch models.EntryPatch) (models.EntryView, error)
	RemoveFromQueue(ctx context.Context, entryID string) error
	UpdateQueueStatus(ctx context.Context, entryID, status string) (models.EntryView, error)
	CalculateEstimatedWaitTime(ctx context.Context) (int, error)
	UpdateQueuePositions(ctx context.Context) ([]models.EntryView, error)
	GetQueueStatistics(ctx context.Context) (models.Statistics, error)
}

type Handler struct {
	queue  QueueService
	hub    *hub.Hub
	logger logrus.FieldLogger
}

type Options struct {
	// Hub enables the /realtime and /ws endpoints when set.
	Hub    *hub.Hub
	Logger logrus.FieldLogger
}

type addEntryRequest struct {
	CustomerID    string  `json:"customer_id"`
	EmployeeID    *string `json:"employee_id"`
	AppointmentID *string `json:"appointment_id"`
	Notes         string  `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type estimateResponse struct {
	EstimatedWaitTime int `json:"estimated_wait_time"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(service QueueService, options Options) *Handler {
	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{queue: service, hub: options.Hub, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/api/queue", h.handleQueue)
	mux.HandleFunc("/api/queue/", h.handleQueueActions)
	if h.hub != nil {
		mux.Handle("/realtime/", SockJSHandler(h.hub, h.logger))
		mux.Handle("/ws", WebSocketHandler(h.hub, h.logger))
	}
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := h.queue.GetCurrentQueue(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if entries == nil {
			entries = []models.EntryView{}
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		h.handleAddEntry(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "customer_id is required")
		return
	}

	entry, err := h.queue.AddToQueue(r.Context(), queue.AddInput{
		CustomerID:    req.CustomerID,
		EmployeeID:    req.EmployeeID,
		AppointmentID: req.AppointmentID,
		Notes:         req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleQueueActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		switch parts[0] {
		case "statistics":
			h.handleStatistics(w, r)
			return
		case "estimate":
			h.handleEstimate(w, r)
			return
		case "refresh":
			h.handleRefresh(w, r)
			return
		}
		h.handleEntry(w, r, parts[0])
		return
	}

	if len(parts) == 2 && parts[1] == "status" {
		h.handleStatus(w, r, parts[0])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.queue.GetQueueStatistics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	wait, err := h.queue.CalculateEstimatedWaitTime(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimateResponse{EstimatedWaitTime: wait})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries, err := h.queue.UpdateQueuePositions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.EntryView{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleEntry(w http.ResponseWriter, r *http.Request, entryID string) {
	switch r.Method {
	case http.MethodGet:
		entry, err := h.queue.GetQueueEntry(r.Context(), entryID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodPatch:
		var patch models.EntryPatch
		if !decodeRequest(w, r, &patch) {
			return
		}
		entry, err := h.queue.UpdateQueueEntry(r.Context(), entryID, patch)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := h.queue.RemoveFromQueue(r.Context(), entryID); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, entryID string) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req statusRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "status is required")
		return
	}
	entry, err := h.queue.UpdateQueueStatus(r.Context(), entryID, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		fields := logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": requestIDFromRequest(r),
		}
		if session, ok := sessionFromContext(r.Context()); ok {
			fields["user_id"] = session.UserID
		}
		h.logger.WithError(err).WithFields(fields).Error("queue operation failed")
	}
	writeError(w, requestIDFromRequest(r), status, code, msg)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		return http.StatusNotFound, "entry_not_found", "queue entry not found"
	case errors.Is(err, store.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_request", "status must be one of WAITING, IN_PROGRESS, COMPLETED, CANCELLED, NO_SHOW"
	case errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request", "invalid request parameters"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "status transition not allowed"
	case errors.Is(err, store.ErrDuplicateCheckIn):
		return http.StatusConflict, "duplicate_check_in", "customer is already in the queue"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}
