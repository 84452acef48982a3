package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	reservationserrors "campsite/internal/reservations/errors"
	"campsite/pkg/config"
	"campsite/pkg/logger"
	"campsite/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newMongoTestConfig connects to TEST_MONGO_URI (a replica set, transactions
// need one) and points the config at a throwaway database.
func newMongoTestConfig(t *testing.T) *config.Config {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	cfg := config.FromEnv("reservations-test")
	cfg.Log = logger.Discard()
	cfg.MongoURI = uri
	cfg.MongoDatabaseName = "campsite_test_" + uuid.NewString()[:8]
	cfg.CampsiteID = "test-site"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	cfg.Client.Mongo = client

	db := client.Database(cfg.MongoDatabaseName)
	for _, name := range []string{CollectionName, GuardCollectionName, LockCollectionName} {
		if err := db.CreateCollection(ctx, name); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return cfg
}

func TestMongoRepository(t *testing.T) {
	cfg := newMongoTestConfig(t)
	repo := NewMongoReservationRepository(cfg)
	ctx := context.Background()

	mustInsert(t, repo, "a", day(10), day(13))
	mustInsert(t, repo, "b", day(20), day(21))

	if busy, err := repo.Overlaps(ctx, day(13), day(20), ""); err != nil || busy {
		t.Errorf("gap should be free: %v %v", busy, err)
	}
	if busy, _ := repo.Overlaps(ctx, day(12), day(14), ""); !busy {
		t.Errorf("expected overlap")
	}
	if busy, _ := repo.Overlaps(ctx, day(12), day(14), "a"); busy {
		t.Errorf("self should be excluded")
	}

	booked, err := repo.DatesBooked(ctx, day(12), day(21))
	if err != nil {
		t.Fatal(err)
	}
	if len(booked) != 2 || !booked.Contains(day(12)) || !booked.Contains(day(20)) {
		t.Errorf("unexpected booked dates %v", booked.Sorted())
	}

	updated, err := repo.Update(ctx, "a", day(1), day(3))
	if err != nil {
		t.Fatal(err)
	}
	if updated.StartDate != day(1) || updated.EndDate != day(3) || updated.Version != 2 {
		t.Errorf("unexpected update result %+v", updated)
	}

	if err := repo.Remove(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.FindByID(ctx, "b"); !errors.Is(err, reservationserrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("expected 1 reservation, got %d", n)
	}
}

func TestMongoTransaction_RollsBack(t *testing.T) {
	cfg := newMongoTestConfig(t)
	repo := NewMongoReservationRepository(cfg)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Insert(ctx, &model.Reservation{ID: "x", StartDate: day(1), EndDate: day(2)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "x"); !errors.Is(err, reservationserrors.ErrNotFound) {
		t.Errorf("aborted insert is visible: %v", err)
	}
}

func TestMongoTransaction_GuardSerializesCheckAndInsert(t *testing.T) {
	cfg := newMongoTestConfig(t)
	repo := NewMongoReservationRepository(cfg)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
				busy, err := repo.Overlaps(ctx, day(5), day(7), "")
				if err != nil {
					return err
				}
				if busy {
					return reservationserrors.ErrConflict
				}
				if err := repo.Insert(ctx, &model.Reservation{ID: uuid.NewString(), StartDate: day(5), EndDate: day(7)}); err != nil {
					return err
				}
				return nil
			})
		}()
	}
	wg.Wait()

	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("expected exactly one committed reservation, got %d", n)
	}
}

func TestMongoLockRepository(t *testing.T) {
	cfg := newMongoTestConfig(t)
	locks := NewReservationLockRepository(cfg).(*mongoReservationLockRepository)
	ctx := context.Background()

	if err := locks.TryAcquire(ctx, "site", "owner-1", time.Minute); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := locks.TryAcquire(ctx, "site", "owner-2", time.Minute); !errors.Is(err, reservationserrors.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	// A release by a non-owner is a no-op.
	_ = locks.Release(ctx, "site", "owner-2")
	if err := locks.TryAcquire(ctx, "site", "owner-3", time.Minute); !errors.Is(err, reservationserrors.ErrLockHeld) {
		t.Fatalf("lock released by the wrong owner: %v", err)
	}

	locks.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if err := locks.TryAcquire(ctx, "site", "owner-4", time.Minute); err != nil {
		t.Fatalf("expired lock should be reclaimed: %v", err)
	}
}
