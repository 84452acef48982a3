package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	reservationserrors "campsite/internal/reservations/errors"
	mongotx "campsite/pkg/db/mongo"
	"campsite/pkg/model"

	"cloud.google.com/go/civil"
	"github.com/google/btree"
)

// intervalKey orders the index by start date, then id.
type intervalKey struct {
	start civil.Date
	id    string
}

func lessInterval(a, b intervalKey) bool {
	if a.start != b.start {
		return a.start.Before(b.start)
	}
	return a.id < b.id
}

type memoryReservationRepository struct {
	mu    sync.RWMutex
	index *btree.BTreeG[intervalKey]
	byID  map[string]*model.Reservation
	// maxNights is the longest stay ever stored. An interval starting more
	// than maxNights before a query range cannot reach into it, which bounds
	// the index scan.
	maxNights int

	txMu sync.Mutex
	now  func() time.Time
}

// NewMemoryReservationRepository returns a process-local interval store.
func NewMemoryReservationRepository() ReservationRepository {
	return &memoryReservationRepository{
		index: btree.NewG(16, lessInterval),
		byID:  make(map[string]*model.Reservation),
		now:   time.Now,
	}
}

// scan calls fn for every stored reservation whose start lies in
// [from-maxNights, to). Callers hold mu.
func (r *memoryReservationRepository) scan(from, to civil.Date, fn func(res *model.Reservation) bool) {
	lo := intervalKey{start: from.AddDays(-r.maxNights)}
	hi := intervalKey{start: to}
	r.index.AscendRange(lo, hi, func(k intervalKey) bool {
		return fn(r.byID[k.id])
	})
}

func (r *memoryReservationRepository) Overlaps(ctx context.Context, start, end civil.Date, excludeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	found := false
	r.scan(start, end, func(res *model.Reservation) bool {
		if res.ID != excludeID && res.EndDate.After(start) {
			found = true
			return false
		}
		return true
	})
	return found, nil
}

func (r *memoryReservationRepository) DatesBooked(ctx context.Context, from, to civil.Date) (model.DateSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	booked := model.NewDateSet()
	r.scan(from, to, func(res *model.Reservation) bool {
		if res.EndDate.After(from) {
			booked.AddRange(model.MaxDate(res.StartDate, from), model.MinDate(res.EndDate, to))
		}
		return true
	})
	return booked, nil
}

func (r *memoryReservationRepository) Insert(ctx context.Context, res *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[res.ID]; exists {
		return fmt.Errorf("failed to insert reservation: duplicate id %s", res.ID)
	}

	now := r.now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = res.CreatedAt
	res.Version = 1

	r.put(res.Clone())
	undoFrom(ctx, func() { r.removeLocked(res.ID) })
	return nil
}

func (r *memoryReservationRepository) Update(ctx context.Context, id string, start, end civil.Date) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}

	previous := existing.Clone()
	updated := existing.Clone()
	updated.StartDate = start
	updated.EndDate = end
	updated.UpdatedAt = r.now().UTC()
	updated.Version++

	r.removeLocked(id)
	r.put(updated)
	undoFrom(ctx, func() {
		r.removeLocked(id)
		r.put(previous)
	})
	return updated.Clone(), nil
}

func (r *memoryReservationRepository) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return reservationserrors.ErrNotFound
	}

	r.removeLocked(id)
	undoFrom(ctx, func() { r.put(existing) })
	return nil
}

func (r *memoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return res.Clone(), nil
}

func (r *memoryReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		return []*model.Reservation{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Reservation, 0, min(limit, len(r.byID)))
	var skipped int64
	r.index.Ascend(func(k intervalKey) bool {
		if skipped < offset {
			skipped++
			return true
		}
		out = append(out, r.byID[k.id].Clone())
		return len(out) < limit
	})
	return out, nil
}

func (r *memoryReservationRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

// ExecuteTransaction runs fn with an undo log attached to the context. If fn
// fails, every mutation it made is reverted in reverse order. Transactions
// are serialized among themselves; plain reads are not blocked.
func (r *memoryReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	tx := &memoryTx{}
	committed := false
	defer func() {
		if !committed {
			r.mu.Lock()
			tx.rollback()
			r.mu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *memoryReservationRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *memoryReservationRepository) put(res *model.Reservation) {
	r.byID[res.ID] = res
	r.index.ReplaceOrInsert(intervalKey{start: res.StartDate, id: res.ID})
	if n := res.Nights(); n > r.maxNights {
		r.maxNights = n
	}
}

func (r *memoryReservationRepository) removeLocked(id string) {
	res, ok := r.byID[id]
	if !ok {
		return
	}
	r.index.Delete(intervalKey{start: res.StartDate, id: id})
	delete(r.byID, id)
}

type memoryTxKey struct{}

type memoryTx struct {
	undo []func()
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// undoFrom records fn on the transaction carried by ctx, if any. Called with
// mu held; fn runs later with mu held again.
func undoFrom(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		tx.undo = append(tx.undo, fn)
	}
}
