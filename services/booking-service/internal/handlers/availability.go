package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
)

type AvailabilityHandler struct {
	eval   *availability.Evaluator
	slots  *availability.Enumerator
	logger *slog.Logger
	now    func() time.Time
}

func NewAvailabilityHandler(eval *availability.Evaluator, slots *availability.Enumerator, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{eval: eval, slots: slots, logger: logger, now: time.Now}
}

type checkRequest struct {
	BusinessID       string `json:"business_id"`
	ServiceID        string `json:"service_id"`
	Mode             string `json:"mode"`
	Start            string `json:"start"`
	TimeZone         string `json:"tz"`
	DurationMinutes  int    `json:"duration_minutes"`
	StaffID          string `json:"staff_id"`
	ResourceTypeID   string `json:"resource_type_id"`
	ResourceQuantity int    `json:"resource_quantity"`
	ExcludeBookingID string `json:"exclude_booking_id"`
}

type checkResponse struct {
	OK    bool   `json:"ok"`
	Start string `json:"start"`
}

type slotItem struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	DisplayStart string `json:"display_start"`
}

type slotsResponse struct {
	BusinessID      string     `json:"business_id"`
	ServiceID       string     `json:"service_id"`
	Mode            string     `json:"mode"`
	DurationMinutes int        `json:"duration_minutes"`
	TimeZone        string     `json:"timezone"`
	Slots           []slotItem `json:"slots"`
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Start) == "" {
		writeError(w, h.logger, errs.Validation("start", "required"))
		return
	}

	ctx := r.Context()
	loc, err := h.eval.Zone(ctx, strings.TrimSpace(req.BusinessID), req.TimeZone)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	start, err := timenorm.Instant(req.Start, loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	err = h.eval.Check(ctx, mode, availability.Candidate{
		BusinessID:       strings.TrimSpace(req.BusinessID),
		ServiceID:        strings.TrimSpace(req.ServiceID),
		StaffID:          strings.TrimSpace(req.StaffID),
		ResourceTypeID:   strings.TrimSpace(req.ResourceTypeID),
		ResourceQuantity: req.ResourceQuantity,
		Start:            start,
		DurationMinutes:  req.DurationMinutes,
	}, strings.TrimSpace(req.ExcludeBookingID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{OK: true, Start: timenorm.Format(start)})
}

// Slots lists bookable slots. Slots starting before now are left out.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	param := func(name string) string { return strings.TrimSpace(q.Get(name)) }

	businessID, serviceID := param("business_id"), param("service_id")
	if businessID == "" || serviceID == "" || param("range_start") == "" || param("range_end") == "" {
		http.Error(w, "business_id, service_id, range_start and range_end are required", http.StatusBadRequest)
		return
	}
	mode, err := parseMode(param("mode"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	interval, err := intParam(param("interval_minutes"), "interval_minutes", 30)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	quantity, err := intParam(param("quantity"), "quantity", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	loc, err := h.eval.Zone(ctx, businessID, param("tz"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rangeStart, err := timenorm.Instant(param("range_start"), loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rangeEnd, err := timenorm.Instant(param("range_end"), loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.slots.Enumerate(ctx, availability.Query{
		BusinessID:       businessID,
		ServiceID:        serviceID,
		Mode:             mode,
		RangeStart:       rangeStart,
		RangeEnd:         rangeEnd,
		IntervalMinutes:  interval,
		StaffID:          param("staff_id"),
		ResourceTypeID:   param("resource_type_id"),
		ResourceQuantity: quantity,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	display := res.Location
	if tz := param("tz"); tz != "" {
		display = loc
	}
	now := h.now().UTC()
	items := make([]slotItem, 0, len(res.Starts))
	for _, s := range res.Starts {
		if s.Before(now) {
			continue
		}
		items = append(items, slotItem{
			Start:        timenorm.Format(s),
			End:          timenorm.Format(s.Add(res.Duration)),
			DisplayStart: s.In(display).Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		BusinessID:      businessID,
		ServiceID:       serviceID,
		Mode:            string(res.Mode),
		DurationMinutes: int(res.Duration / time.Minute),
		TimeZone:        display.String(),
		Slots:           items,
	})
}

func parseMode(raw string) (model.BookingMode, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	mode, ok := model.ParseBookingMode(raw)
	if !ok {
		return "", errs.Validation("mode", "unknown booking mode "+strconv.Quote(raw))
	}
	return mode, nil
}

func intParam(raw, field string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Validation(field, "must be an integer")
	}
	return n, nil
}
