package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"payment-reconciler/internal/journal"
	"payment-reconciler/internal/mpesa"
	"payment-reconciler/internal/push"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Handler exposes the payment-attempt API: start, inspect, cancel.
type Handler struct {
	flow     *mpesa.Flow
	attempts mpesa.AttemptJournal
	logger   *slog.Logger
}

func NewHandler(flow *mpesa.Flow, attempts mpesa.AttemptJournal, logger *slog.Logger) *Handler {
	return &Handler{flow: flow, attempts: attempts, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /payments/mpesa", h.start)
	mux.HandleFunc("GET /payments/mpesa/attempts/{id}", h.getAttempt)
	mux.HandleFunc("DELETE /payments/mpesa/attempts/{id}", h.cancelAttempt)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req mpesa.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.flow.Start(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, push.ErrInvalidPhoneNumber), errors.Is(err, mpesa.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "Error starting payment attempt", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start payment attempt")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"attempt_id": id.String()})
}

func (h *Handler) getAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attempt id")
		return
	}

	entity, err := h.attempts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrAttemptNotFound) {
			writeError(w, http.StatusNotFound, "attempt not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Error fetching attempt", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch attempt")
		return
	}

	writeJSON(w, http.StatusOK, toAttemptResponse(entity))
}

func (h *Handler) cancelAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attempt id")
		return
	}

	if !h.flow.Cancel(id) {
		writeError(w, http.StatusNotFound, "attempt not running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attemptResponse struct {
	ID           uuid.UUID  `json:"id"`
	BookingID    int64      `json:"booking_id"`
	PaymentID    *int64     `json:"payment_id,omitempty"`
	Phone        string     `json:"phone"`
	Amount       float64    `json:"amount"`
	GatewayRef   *string    `json:"gateway_ref,omitempty"`
	LastStatus   *string    `json:"last_status,omitempty"`
	PollAttempts int        `json:"poll_attempts"`
	Outcome      *string    `json:"outcome,omitempty"`
	Decision     *string    `json:"decision,omitempty"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

func toAttemptResponse(entity *journal.AttemptEntity) attemptResponse {
	return attemptResponse{
		ID:           entity.ID,
		BookingID:    entity.BookingID,
		PaymentID:    entity.PaymentID,
		Phone:        entity.Phone,
		Amount:       entity.Amount,
		GatewayRef:   entity.GatewayRef,
		LastStatus:   entity.LastStatus,
		PollAttempts: entity.PollAttempts,
		Outcome:      entity.Outcome,
		Decision:     entity.Decision,
		Error:        entity.Error,
		CreatedAt:    entity.CreatedAt,
		UpdatedAt:    entity.UpdatedAt,
		DecidedAt:    entity.DecidedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
