package repository

import (
	"context"

	mongotx "campsite/pkg/db/mongo"
	"campsite/pkg/model"

	"cloud.google.com/go/civil"
)

// ReservationRepository is the interval store behind the booking
// coordinator. It records reservations as [start, end) ranges and answers
// overlap queries. It does not enforce the no-overlap rule itself; callers
// check Overlaps and mutate inside the same serialized section.
type ReservationRepository interface {
	// Overlaps reports whether any reservation other than excludeID shares a
	// date with [start, end). An empty excludeID excludes nothing.
	Overlaps(ctx context.Context, start, end civil.Date, excludeID string) (bool, error)
	// DatesBooked returns the dates of [from, to) covered by a reservation,
	// read from a single consistent snapshot.
	DatesBooked(ctx context.Context, from, to civil.Date) (model.DateSet, error)

	Insert(ctx context.Context, r *model.Reservation) error
	Update(ctx context.Context, id string, start, end civil.Date) (*model.Reservation, error)
	Remove(ctx context.Context, id string) error

	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context) (int64, error)

	// ExecuteTransaction runs fn so that either all of its mutations become
	// visible or none do.
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
	Ping(ctx context.Context) error
}
