package model

import "time"

// ReservationLock is the advisory lock document that serializes writers
// across service replicas. Owner is a per-acquisition token so a holder
// never releases a lock that expired and was taken over by someone else.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
