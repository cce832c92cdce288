// Package http provides HTTP handlers and middleware for the room booking API.
//
// Every request must carry the principal resolved by the upstream auth proxy
// in the X-User-ID header; X-User-Role: admin grants administrator rights.
//
// The router exposes the following endpoints:
//   - GET /calendar/{daily|weekly|monthly}?date=YYYY-MM-DD&status=all|upcoming|past:
//     the grid of enabled rooms against the view's columns, exchanging the
//     `gridDTO` payload defined in calendar_handler.go. Each cell carries the
//     action a click on it opens (create, edit or none).
//   - GET /calendar/stream?view=...&date=...&status=...: Server-Sent Events.
//     A `grid` event carries the initial snapshot and every snapshot re-fetched
//     after a change to bookings, rooms or categories. An `error` event ends the
//     stream when the change feed drops.
//   - GET /slots?start=8&end=20&interval=30: the "HH:MM" labels of the daily view.
//   - POST /bookings, GET /bookings/{id}, PUT /bookings/{id}: the booking form,
//     exchanging `bookingRequest` / `bookingDTO` from booking_handler.go.
//     Overlaps answer 409 with error_code BOOKING_CONFLICT; field errors answer
//     422 with a per-field message map.
//   - POST /bookings/{id}/cancel, /approve, /reject: lifecycle transitions.
//     Approve and reject require administrator rights.
//   - GET /rooms, POST /rooms, PUT /rooms/{id}, GET /categories,
//     POST /categories, PUT /categories/{id}: the catalog. Listing is available
//     to any principal while mutations require administrator rights.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
