package model

import (
	"time"

	"cloud.google.com/go/civil"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationModified  = "reservation.modified"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a write to the active set commits.
// Events are published once the reservation lock is released, so two events
// of one reservation may arrive out of order. Version, taken inside the write,
// restores commit order; a cancellation carries the version after the last
// change.
type ReservationEvent struct {
	EventID       string     `json:"event_id"`
	Type          string     `json:"type"`
	ReservationID string     `json:"reservation_id"`
	StartDate     civil.Date `json:"start_date"`
	EndDate       civil.Date `json:"end_date"`
	Email         string     `json:"email"`
	Version       int64      `json:"version"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

func NewReservationEvent(eventID, eventType string, r *Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:       eventID,
		Type:          eventType,
		ReservationID: r.ID,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Email:         r.Email,
		Version:       r.Version,
		OccurredAt:    at.UTC(),
	}
}
