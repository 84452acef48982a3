package audit

import (
	"context"
	"fmt"
	"time"

	"campsite/pkg/kafka"
	"campsite/pkg/logger"
	"campsite/pkg/model"
)

// Recorder consumes reservation events and appends them to the history
// collection.
type Recorder struct {
	store EventStore
	log   *logger.Logger
	now   func() time.Time
}

func NewRecorder(store EventStore, log *logger.Logger) *Recorder {
	return &Recorder{
		store: store,
		log:   log.With("component", "reservation_audit"),
		now:   time.Now,
	}
}

// Handle is a kafka.MessageHandler. Undecodable or incomplete events are
// permanent failures; store failures are retried by the consumer.
func (r *Recorder) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.ReservationEvent
	if err := msg.DecodeValue(&event); err != nil {
		return err
	}

	if err := checkEvent(event); err != nil {
		return kafka.NewPermanentError("invalid reservation event", err)
	}

	record := NewEventRecord(event, msg.GetCorrelationID(), msg.Partition, msg.Offset, r.now())
	inserted, err := r.store.Record(ctx, record)
	if err != nil {
		return kafka.NewTransientError("failed to store reservation event", err)
	}

	if !inserted {
		r.log.Debug("Skipped duplicate reservation event", "event_id", event.EventID)
		return nil
	}

	r.log.Info("Recorded reservation event",
		"event_id", event.EventID,
		"event_type", event.Type,
		"reservation_id", event.ReservationID,
		"start_date", event.StartDate.String(),
		"end_date", event.EndDate.String(),
		"version", event.Version,
	)
	return nil
}

func checkEvent(event model.ReservationEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event_id is empty")
	}
	if event.ReservationID == "" {
		return fmt.Errorf("reservation_id is empty")
	}
	switch event.Type {
	case model.EventReservationCreated, model.EventReservationModified, model.EventReservationCancelled:
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
	if !event.StartDate.Before(event.EndDate) {
		return fmt.Errorf("start_date %s is not before end_date %s", event.StartDate, event.EndDate)
	}
	return nil
}
