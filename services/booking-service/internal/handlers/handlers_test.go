package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()

	s := memstore.New()
	s.PutBusiness(model.Business{ID: "biz-1", Name: "Clinic", Timezone: "America/New_York"})
	s.PutService(model.Service{ID: "svc-1", BusinessID: "biz-1", Name: "Checkup", DurationMinutes: 30, BookingMode: model.ModeTimeOnly})
	s.PutCustomer(model.Customer{ID: "cus-1", BusinessID: "biz-1", Name: "Lee"})
	s.AddAvailability(model.Owner{Kind: model.OwnerBusiness, ID: "biz-1"},
		model.AvailabilityEntry{Kind: model.EntrySchedule, DayOfWeek: 1, Start: "09:00", End: "10:00"})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eval := availability.NewEvaluator(s)
	avail := NewAvailabilityHandler(eval, availability.NewEnumerator(eval, availability.DefaultLimits()), logger)
	avail.now = func() time.Time { return now }
	orch := booking.NewOrchestrator(s, logger, booking.WithClock(func() time.Time { return now }))

	mux := http.NewServeMux()
	Register(mux, avail, NewBookingHandler(orch, logger), nil)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, s
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	out := map[string]any{}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return out
}

func TestSlots_BusinessZone(t *testing.T) {
	srv, _ := newServer(t)

	q := url.Values{}
	q.Set("business_id", "biz-1")
	q.Set("service_id", "svc-1")
	q.Set("range_start", "2026-03-02T00:00:00")
	q.Set("range_end", "2026-03-03T00:00:00")
	resp, err := http.Get(srv.URL + "/api/v1/public/slots?" + q.Encode())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body slotsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()

	assert.Equal(t, "time_only", body.Mode)
	assert.Equal(t, 30, body.DurationMinutes)
	assert.Equal(t, "America/New_York", body.TimeZone)
	require.Len(t, body.Slots, 2)
	// 09:00 EST is 14:00 UTC.
	assert.Equal(t, "2026-03-02T14:00:00Z", body.Slots[0].Start)
	assert.Equal(t, "2026-03-02T14:30:00Z", body.Slots[0].End)
	assert.Equal(t, "2026-03-02T09:00:00-05:00", body.Slots[0].DisplayStart)
	assert.Equal(t, "2026-03-02T14:30:00Z", body.Slots[1].Start)
}

func TestSlots_DropsPastStarts(t *testing.T) {
	srv, _ := newServer(t)
	now = time.Date(2026, 3, 2, 14, 10, 0, 0, time.UTC)
	t.Cleanup(func() { now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })

	resp, err := http.Get(srv.URL + "/api/v1/public/slots?business_id=biz-1&service_id=svc-1&range_start=2026-03-02T00:00:00Z&range_end=2026-03-03T00:00:00Z")
	require.NoError(t, err)
	var body slotsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()

	require.Len(t, body.Slots, 1)
	assert.Equal(t, "2026-03-02T14:30:00Z", body.Slots[0].Start)
}

func TestSlots_BadInput(t *testing.T) {
	srv, _ := newServer(t)

	cases := map[string]int{
		"?business_id=biz-1&service_id=svc-1":                                                                http.StatusBadRequest,
		"?business_id=biz-1&service_id=svc-1&range_start=nope&range_end=2026-03-03":                          http.StatusBadRequest,
		"?business_id=biz-1&service_id=svc-1&range_start=2026-03-02&range_end=2026-03-03&mode=party":         http.StatusBadRequest,
		"?business_id=biz-1&service_id=svc-1&range_start=2026-03-02&range_end=2026-03-03&interval_minutes=1": http.StatusBadRequest,
		"?business_id=biz-9&service_id=svc-1&range_start=2026-03-02&range_end=2026-03-03":                    http.StatusNotFound,
		"?business_id=biz-1&service_id=svc-1&range_start=2026-03-02&range_end=2026-03-03&tz=Mars/Base":       http.StatusBadRequest,
	}
	for query, want := range cases {
		resp, err := http.Get(srv.URL + "/api/v1/public/slots" + query)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, query)
	}
}

func TestBookThenConflict(t *testing.T) {
	srv, s := newServer(t)

	req := map[string]any{
		"business_id":  "biz-1",
		"service_id":   "svc-1",
		"customer_id":  "cus-1",
		"booking_time": "2026-03-02T09:00:00",
	}
	resp, body := postJSON(t, srv, "/api/v1/public/book", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "2026-03-02T14:00:00Z", body["booking_time"])
	assert.Equal(t, "2026-03-02T14:30:00Z", body["end_time"])
	assert.Equal(t, "confirmed", body["status"])
	require.Len(t, s.Bookings(), 1)

	resp, body = postJSON(t, srv, "/api/v1/public/book", req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(errs.ClauseSlotTaken), body["clause"])

	resp, body = postJSON(t, srv, "/api/v1/availability/check", map[string]any{
		"business_id": "biz-1", "service_id": "svc-1", "start": "2026-03-02T09:30:00",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])

	resp, body = postJSON(t, srv, "/api/v1/availability/check", map[string]any{
		"business_id": "biz-1", "service_id": "svc-1", "start": "2026-03-02T10:00:00",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(errs.ClauseBusinessClosed), body["clause"])
}

func TestBookingLifecycle(t *testing.T) {
	srv, s := newServer(t)

	resp, created := postJSON(t, srv, "/api/v1/public/book", map[string]any{
		"business_id": "biz-1", "service_id": "svc-1", "customer_id": "cus-1", "booking_time": "2026-03-02T14:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := created["id"].(string)

	resp, updated := postJSON(t, srv, "/api/v1/bookings/update", map[string]any{
		"booking_id": id, "booking_time": "2026-03-02T09:30:00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2026-03-02T14:30:00Z", updated["booking_time"])

	resp, cancelled := postJSON(t, srv, "/api/v1/bookings/cancel", map[string]any{"booking_id": id, "reason": "sick"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", cancelled["status"])
	assert.Equal(t, "sick", cancelled["cancel_reason"])
	assert.NotEmpty(t, cancelled["cancelled_at"])

	got, err := http.Get(srv.URL + "/api/v1/bookings?id=" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "cancelled", decode(t, got)["status"])

	resp, _ = postJSON(t, srv, "/api/v1/bookings/update", map[string]any{"booking_id": id, "status": "archived"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	missing, err := http.Get(srv.URL + "/api/v1/bookings?id=nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	assert.Len(t, s.Events(), 3)
}

func TestMethodAndBody(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/public/book")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/public/book", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWriteError_Transient(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, slog.New(slog.NewTextHandler(io.Discard, nil)), &errs.TransientStoreError{Err: io.ErrUnexpectedEOF})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	writeError(rec, slog.New(slog.NewTextHandler(io.Discard, nil)), &errs.StoreError{Err: io.ErrUnexpectedEOF})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
