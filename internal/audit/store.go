package audit

import (
	"context"
	"fmt"
	"time"

	"campsite/internal/reservations/repository"
	"campsite/pkg/config"
	"campsite/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// EventRecord is one stored entry of the reservation history. Entries of a
// reservation sort into commit order by (reservation_id, version).
type EventRecord struct {
	EventID       string    `bson:"_id"`
	Type          string    `bson:"type"`
	ReservationID string    `bson:"reservation_id"`
	StartDate     time.Time `bson:"start_date"`
	EndDate       time.Time `bson:"end_date"`
	Email         string    `bson:"email"`
	Version       int64     `bson:"version"`
	OccurredAt    time.Time `bson:"occurred_at"`
	RecordedAt    time.Time `bson:"recorded_at"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
	Partition     int       `bson:"partition"`
	Offset        int64     `bson:"offset"`
}

func NewEventRecord(event model.ReservationEvent, correlationID string, partition int, offset int64, recordedAt time.Time) *EventRecord {
	return &EventRecord{
		EventID:       event.EventID,
		Type:          event.Type,
		ReservationID: event.ReservationID,
		StartDate:     event.StartDate.In(time.UTC),
		EndDate:       event.EndDate.In(time.UTC),
		Email:         event.Email,
		Version:       event.Version,
		OccurredAt:    event.OccurredAt.UTC(),
		RecordedAt:    recordedAt.UTC(),
		CorrelationID: correlationID,
		Partition:     partition,
		Offset:        offset,
	}
}

// EventStore persists history entries. Recording the same event twice is
// not an error, since Kafka delivers at least once.
type EventStore interface {
	Record(ctx context.Context, record *EventRecord) (bool, error)
}

type mongoEventStore struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoEventStore(cfg *config.Config) EventStore {
	return &mongoEventStore{
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(repository.EventsCollectionName),
		timeout:    cfg.MongoConnTimeout,
	}
}

// Record inserts the entry and reports whether it was new.
func (s *mongoEventStore) Record(ctx context.Context, record *EventRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record event %s: %w", record.EventID, err)
	}
	return true, nil
}
