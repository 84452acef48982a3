package model

import (
	"time"

	"cloud.google.com/go/civil"
)

// Reservation is a confirmed stay at the campsite covering the half-open
// date range [StartDate, EndDate). The guest leaves on EndDate, so another
// reservation may start that same day. Version starts at 1 and grows by one
// on every committed change.
type Reservation struct {
	ID        string     `json:"id"`
	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contact is the guest metadata attached to a reservation. The booking
// logic never inspects it.
type Contact struct {
	FullName string
	Email    string
}

// ReservationRequest is the body of a create call.
type ReservationRequest struct {
	FullName  string     `json:"full_name" validate:"required,max=100"`
	Email     string     `json:"email" validate:"required,email,max=320"`
	StartDate civil.Date `json:"start_date" validate:"required"`
	EndDate   civil.Date `json:"end_date" validate:"required"`
}

func (r *ReservationRequest) Contact() Contact {
	return Contact{FullName: r.FullName, Email: r.Email}
}

// ReservationDatesRequest is the body of a modify call. Only the date range
// of an existing reservation can change.
type ReservationDatesRequest struct {
	StartDate civil.Date `json:"start_date" validate:"required"`
	EndDate   civil.Date `json:"end_date" validate:"required"`
}

// Nights is the number of dates the reservation occupies.
func (r *Reservation) Nights() int {
	return r.EndDate.DaysSince(r.StartDate)
}

// Overlaps reports whether the reservation shares at least one date with
// [start, end).
func (r *Reservation) Overlaps(start, end civil.Date) bool {
	return RangesOverlap(r.StartDate, r.EndDate, start, end)
}

// Clone returns a copy that shares no state with r.
func (r *Reservation) Clone() *Reservation {
	c := *r
	return &c
}
