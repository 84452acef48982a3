package repository

import (
	"context"
	"fmt"
	"time"

	reservationserrors "campsite/internal/reservations/errors"
	"campsite/pkg/config"
	"campsite/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ReservationLockRepository stores the advisory lock that serializes
// writers across replicas.
type ReservationLockRepository interface {
	// TryAcquire takes lock id for owner until ttl elapses. It returns
	// ErrLockHeld when another live owner holds it. An expired lock is taken
	// over.
	TryAcquire(ctx context.Context, id, owner string, ttl time.Duration) error
	// Release drops the lock if owner still holds it.
	Release(ctx context.Context, id, owner string) error
}

type mongoReservationLockRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewReservationLockRepository(cfg *config.Config) ReservationLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationLockRepository{
		collection: db.Collection(LockCollectionName),
		now:        time.Now,
	}
}

func (r *mongoReservationLockRepository) TryAcquire(ctx context.Context, id, owner string, ttl time.Duration) error {
	now := r.now().UTC()
	lock := &model.ReservationLock{
		ID:        id,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to acquire reservation lock: %w", err)
	}

	// The holder may have died without releasing; its lock expired.
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{
			"owner":      owner,
			"expires_at": lock.ExpiresAt,
			"created_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to reclaim expired reservation lock: %w", err)
	}
	if result.ModifiedCount == 0 {
		return reservationserrors.ErrLockHeld
	}
	return nil
}

func (r *mongoReservationLockRepository) Release(ctx context.Context, id, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release reservation lock: %w", err)
	}
	return nil
}
