package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
)

type BookingHandler struct {
	orch   *booking.Orchestrator
	logger *slog.Logger
}

func NewBookingHandler(orch *booking.Orchestrator, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{orch: orch, logger: logger}
}

type createRequest struct {
	BusinessID       string `json:"business_id"`
	ServiceID        string `json:"service_id"`
	CustomerID       string `json:"customer_id"`
	StaffID          string `json:"staff_id"`
	ResourceTypeID   string `json:"resource_type_id"`
	ResourceQuantity int    `json:"resource_quantity"`
	BookingTime      string `json:"booking_time"`
	TimeZone         string `json:"tz"`
	Notes            string `json:"notes"`
}

type updateRequest struct {
	BookingID    string  `json:"booking_id"`
	BookingTime  *string `json:"booking_time"`
	TimeZone     string  `json:"tz"`
	StaffID      *string `json:"staff_id"`
	Status       *string `json:"status"`
	Notes        *string `json:"notes"`
	CancelReason string  `json:"cancel_reason"`
}

type cancelRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type usageResponse struct {
	ResourceTypeID string `json:"resource_type_id"`
	Quantity       int    `json:"quantity"`
}

type bookingResponse struct {
	ID            string         `json:"id"`
	BusinessID    string         `json:"business_id"`
	ServiceID     string         `json:"service_id"`
	CustomerID    string         `json:"customer_id"`
	StaffID       string         `json:"staff_id,omitempty"`
	BookingTime   string         `json:"booking_time"`
	EndTime       string         `json:"end_time"`
	Status        string         `json:"status"`
	Notes         string         `json:"notes,omitempty"`
	ResourceUsage *usageResponse `json:"resource_usage,omitempty"`
	CancelledAt   string         `json:"cancelled_at,omitempty"`
	CancelReason  string         `json:"cancel_reason,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

func toResponse(b model.Booking) bookingResponse {
	out := bookingResponse{
		ID:           b.ID,
		BusinessID:   b.BusinessID,
		ServiceID:    b.ServiceID,
		CustomerID:   b.CustomerID,
		StaffID:      b.StaffID,
		BookingTime:  timenorm.Format(b.BookingTime),
		EndTime:      timenorm.Format(b.EndTime),
		Status:       string(b.Status),
		Notes:        b.Notes,
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    b.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if b.ResourceUsage != nil {
		out.ResourceUsage = &usageResponse{ResourceTypeID: b.ResourceUsage.ResourceTypeID, Quantity: b.ResourceUsage.Quantity}
	}
	if b.CancelledAt != nil {
		out.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.orch.Create(r.Context(), booking.CreateParams{
		BusinessID:       strings.TrimSpace(req.BusinessID),
		ServiceID:        strings.TrimSpace(req.ServiceID),
		CustomerID:       strings.TrimSpace(req.CustomerID),
		StaffID:          strings.TrimSpace(req.StaffID),
		ResourceTypeID:   strings.TrimSpace(req.ResourceTypeID),
		ResourceQuantity: req.ResourceQuantity,
		BookingTime:      strings.TrimSpace(req.BookingTime),
		TimeZone:         req.TimeZone,
		Notes:            req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(b))
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	changes := booking.Changes{
		BookingTime:  req.BookingTime,
		TimeZone:     req.TimeZone,
		StaffID:      req.StaffID,
		Notes:        req.Notes,
		CancelReason: req.CancelReason,
	}
	if req.Status != nil {
		status, ok := model.ParseBookingStatus(*req.Status)
		if !ok {
			writeError(w, h.logger, errs.Validation("status", "unknown status "+*req.Status))
			return
		}
		changes.Status = &status
	}

	b, err := h.orch.Update(r.Context(), strings.TrimSpace(req.BookingID), changes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(b))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.orch.Cancel(r.Context(), strings.TrimSpace(req.BookingID), req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(b))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	b, err := h.orch.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(b))
}
