package service

import (
	"context"
	"errors"
	"time"

	reservationserrors "campsite/internal/reservations/errors"
	"campsite/internal/reservations/repository"
	"campsite/pkg/config"
	apperrors "campsite/pkg/errors"
	"campsite/pkg/model"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWindowMonths = 1
	// maxAvailabilityWindowDays caps a single availability query.
	maxAvailabilityWindowDays = 366
	publishTimeout            = 5 * time.Second
)

// ReservationService is the booking coordinator. Reserve, Modify and Cancel
// run under the serializer so the no-overlap invariant holds across
// concurrent callers; reads do not take it.
type ReservationService interface {
	Reserve(ctx context.Context, start, end civil.Date, contact model.Contact) (*model.Reservation, error)
	Modify(ctx context.Context, id string, start, end civil.Date) (*model.Reservation, error)
	Cancel(ctx context.Context, id string) error
	AvailableDates(ctx context.Context, from, to civil.Date) ([]civil.Date, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	// DefaultWindow is the availability range used when the caller gives
	// none: today in the campsite time zone through one month later.
	DefaultWindow() (civil.Date, civil.Date)
}

type reservationService struct {
	repo       repository.ReservationRepository
	serializer Serializer
	events     EventPublisher
	cfg        *config.Config
	now        func() time.Time
	newID      func() string
}

func NewReservationService(
	repo repository.ReservationRepository,
	serializer Serializer,
	events EventPublisher,
	cfg *config.Config,
) ReservationService {
	if events == nil {
		events = NewNoopEventPublisher()
	}
	return &reservationService{
		repo:       repo,
		serializer: serializer,
		events:     events,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *reservationService) Reserve(ctx context.Context, start, end civil.Date, contact model.Contact) (*model.Reservation, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}

	res := &model.Reservation{
		StartDate: start,
		EndDate:   end,
		FullName:  contact.FullName,
		Email:     contact.Email,
	}

	err := s.serializer.Do(ctx, func(ctx context.Context) error {
		return s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			if err := s.verifyNoOverlap(ctx, start, end, ""); err != nil {
				return err
			}

			res.ID = s.newID()
			res.CreatedAt = s.now().UTC()
			if err := s.repo.Insert(ctx, res); err != nil {
				return apperrors.Internal("Failed to create reservation", err)
			}
			return nil
		})
	})
	if err != nil {
		s.logFailure("create", "", err)
		return nil, s.mapError(err)
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", res.ID,
		"start_date", res.StartDate.String(),
		"end_date", res.EndDate.String(),
	)
	s.publish(ctx, model.EventReservationCreated, res)
	return res, nil
}

func (s *reservationService) Modify(ctx context.Context, id string, start, end civil.Date) (*model.Reservation, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}

	var updated *model.Reservation
	err := s.serializer.Do(ctx, func(ctx context.Context) error {
		return s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			if _, err := s.repo.FindByID(ctx, id); err != nil {
				return s.lookupError(id, err)
			}
			if err := s.verifyNoOverlap(ctx, start, end, id); err != nil {
				return err
			}

			var err error
			updated, err = s.repo.Update(ctx, id, start, end)
			if err != nil {
				return s.lookupError(id, err)
			}
			return nil
		})
	})
	if err != nil {
		s.logFailure("update", id, err)
		return nil, s.mapError(err)
	}

	s.cfg.Log.Info("Reservation updated successfully",
		"id", id,
		"start_date", updated.StartDate.String(),
		"end_date", updated.EndDate.String(),
	)
	s.publish(ctx, model.EventReservationModified, updated)
	return updated, nil
}

func (s *reservationService) Cancel(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	var cancelled *model.Reservation
	err := s.serializer.Do(ctx, func(ctx context.Context) error {
		return s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			existing, err := s.repo.FindByID(ctx, id)
			if err != nil {
				return s.lookupError(id, err)
			}
			if err := s.repo.Remove(ctx, id); err != nil {
				return s.lookupError(id, err)
			}
			cancelled = existing
			cancelled.Version++
			return nil
		})
	})
	if err != nil {
		s.logFailure("cancel", id, err)
		return s.mapError(err)
	}

	s.cfg.Log.Info("Reservation cancelled successfully", "id", id)
	s.publish(ctx, model.EventReservationCancelled, cancelled)
	return nil
}

func (s *reservationService) AvailableDates(ctx context.Context, from, to civil.Date) ([]civil.Date, error) {
	if to.Before(from) {
		return nil, apperrors.InvalidInput("date_to must not be before date_from").
			WithCause(reservationserrors.ErrInvalidRange)
	}
	if to.DaysSince(from) > maxAvailabilityWindowDays {
		return nil, apperrors.InvalidInput("availability window cannot exceed 366 days")
	}
	if from == to {
		return []civil.Date{}, nil
	}

	booked, err := s.repo.DatesBooked(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to read booked dates", "date_from", from.String(), "date_to", to.String(), "error", err)
		return nil, s.mapError(err)
	}

	available := make([]civil.Date, 0, to.DaysSince(from)-len(booked))
	for _, d := range model.DatesBetween(from, to) {
		if !booked.Contains(d) {
			available = append(available, d)
		}
	}
	return available, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	return res, nil
}

func (s *reservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	var (
		count        int64
		reservations []*model.Reservation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if count, err = s.repo.Count(gctx); err != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", err)
			return apperrors.Internal("Failed to count reservations", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if reservations, err = s.repo.FindAll(gctx, limit, offset); err != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", err)
			return apperrors.Internal("Failed to retrieve reservations", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return reservations, count, nil
}

func (s *reservationService) DefaultWindow() (civil.Date, civil.Date) {
	today := civil.DateOf(s.now().In(s.cfg.Location))
	return today, model.AddMonths(today, defaultWindowMonths)
}

func (s *reservationService) verifyNoOverlap(ctx context.Context, start, end civil.Date, excludeID string) error {
	busy, err := s.repo.Overlaps(ctx, start, end, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}
	if busy {
		return apperrors.Conflict("The campsite is already reserved for some of the requested dates").
			WithCause(reservationserrors.ErrConflict).
			WithDetails(map[string]any{
				"start_date": start.String(),
				"end_date":   end.String(),
			})
	}
	return nil
}

func (s *reservationService) lookupError(id string, err error) error {
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Reservation", id).WithCause(reservationserrors.ErrNotFound)
	case errors.Is(err, reservationserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid reservation ID format").WithCause(reservationserrors.ErrInvalidID)
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Failed to retrieve reservation", err)
	}
}

func (s *reservationService) mapError(err error) error {
	switch {
	case errors.Is(err, ErrLockWait):
		return apperrors.Timeout("Timed out waiting for other reservations to complete").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return apperrors.Timeout("Reservation request timed out").WithCause(err)
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Reservation store failure", err)
	}
}

func (s *reservationService) logFailure(op, id string, err error) {
	if apperrors.HasCode(err, apperrors.CodeConflict) || apperrors.HasCode(err, apperrors.CodeNotFound) {
		s.cfg.Log.Info("Reservation "+op+" rejected", "id", id, "reason", err.Error())
		return
	}
	s.cfg.Log.Error("Failed to "+op+" reservation", "id", id, "error", err)
}

// publish announces a committed change. The write already happened, so a
// publishing failure is only logged. It runs after the lock is released, so
// events of one reservation are not published in commit order; consumers
// order them by res.Version.
func (s *reservationService) publish(ctx context.Context, eventType string, res *model.Reservation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := model.NewReservationEvent(s.newID(), eventType, res, s.now())
	if err := s.events.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"event_type", eventType,
			"reservation_id", res.ID,
			"error", err,
		)
	}
}

func checkRange(start, end civil.Date) error {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return apperrors.InvalidInput("start_date must be before end_date").
			WithCause(reservationserrors.ErrInvalidRange)
	}
	return nil
}

func checkID(id string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty").WithCause(reservationserrors.ErrInvalidID)
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.InvalidInput("Invalid reservation ID format").WithCause(reservationserrors.ErrInvalidID)
	}
	return nil
}
