package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "campsite/internal/reservations/errors"
	"campsite/internal/reservations/repository"
	"campsite/pkg/logger"

	"github.com/google/uuid"
)

// Serializer runs critical sections one at a time. Every Reserve, Modify
// and Cancel executes inside Do, which makes its check-then-mutate atomic
// with respect to the others.
type Serializer interface {
	// Do waits for exclusive access, runs fn and releases access on every
	// exit path, panics included. It gives up when ctx is done before
	// access was granted.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ErrLockWait is wrapped into the error Do returns when ctx ended while
// waiting for access.
var ErrLockWait = errors.New("gave up waiting for the reservation lock")

// LocalSerializer serializes callers within one process.
type LocalSerializer struct {
	sem chan struct{}
}

func NewLocalSerializer() *LocalSerializer {
	return &LocalSerializer{sem: make(chan struct{}, 1)}
}

func (s *LocalSerializer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrLockWait, ctx.Err())
	}
	defer func() { <-s.sem }()

	return fn(ctx)
}

const maxBackoffFactor = 8

// MongoSerializer serializes callers across processes with an advisory lock
// document. The lock carries an expiry so a crashed holder cannot block
// writers forever, and fn runs under a deadline no later than that expiry.
type MongoSerializer struct {
	locks  repository.ReservationLockRepository
	lockID string
	ttl    time.Duration
	poll   time.Duration
	log    *logger.Logger
}

func NewMongoSerializer(locks repository.ReservationLockRepository, lockID string, ttl, poll time.Duration, log *logger.Logger) *MongoSerializer {
	return &MongoSerializer{
		locks:  locks,
		lockID: lockID,
		ttl:    ttl,
		poll:   poll,
		log:    log,
	}
}

func (s *MongoSerializer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	owner := uuid.NewString()
	if err := s.acquire(ctx, owner); err != nil {
		return err
	}
	defer s.release(ctx, owner)

	ctx, cancel := context.WithTimeout(ctx, s.ttl)
	defer cancel()
	return fn(ctx)
}

func (s *MongoSerializer) acquire(ctx context.Context, owner string) error {
	wait := s.poll
	for attempt := 0; ; attempt++ {
		err := s.locks.TryAcquire(ctx, s.lockID, owner, s.ttl)
		if err == nil {
			if attempt > 0 {
				s.log.Debug("Reservation lock acquired", "lock_id", s.lockID, "attempts", attempt+1)
			}
			return nil
		}
		if !errors.Is(err, reservationserrors.ErrLockHeld) {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrLockWait, ctx.Err())
			}
			return err
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", ErrLockWait, ctx.Err())
		case <-t.C:
		}
		wait = min(wait*2, s.poll*maxBackoffFactor)
	}
}

// release runs on a context detached from ctx so that a cancelled request
// still frees the lock.
func (s *MongoSerializer) release(ctx context.Context, owner string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.locks.Release(ctx, s.lockID, owner); err != nil {
		s.log.Warn("Failed to release reservation lock", "lock_id", s.lockID, "error", err)
	}
}
