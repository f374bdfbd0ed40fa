package handlers

import "net/http"

// Register mounts the booking API on mux. Public routes go through public,
// which callers use for rate limiting.
func Register(mux *http.ServeMux, avail *AvailabilityHandler, bookings *BookingHandler, public func(http.Handler) http.Handler) {
	if public == nil {
		public = func(h http.Handler) http.Handler { return h }
	}
	mux.HandleFunc("/api/v1/availability/check", avail.Check)
	mux.Handle("/api/v1/public/slots", public(http.HandlerFunc(avail.Slots)))
	mux.Handle("/api/v1/public/book", public(http.HandlerFunc(bookings.Create)))
	mux.HandleFunc("/api/v1/bookings/update", bookings.Update)
	mux.HandleFunc("/api/v1/bookings/cancel", bookings.Cancel)
	mux.HandleFunc("/api/v1/bookings", bookings.Get)
}
