package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "campsite/internal/reservations/errors"
	"campsite/pkg/config"
	mongotx "campsite/pkg/db/mongo"
	"campsite/pkg/model"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollectionName       = "Reservations"
	GuardCollectionName  = "Reservation_guards"
	LockCollectionName   = "Reservation_locks"
	EventsCollectionName = "Reservation_events"
)

// reservationDocument is the stored shape. Dates are kept as UTC midnight so
// range comparisons on the index work on plain BSON dates.
type reservationDocument struct {
	ID        string    `bson:"_id"`
	StartDate time.Time `bson:"start_date"`
	EndDate   time.Time `bson:"end_date"`
	FullName  string    `bson:"full_name"`
	Email     string    `bson:"email"`
	Version   int64     `bson:"version"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toStoredDate(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func fromStoredDate(t time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}

func toDocument(r *model.Reservation) *reservationDocument {
	return &reservationDocument{
		ID:        r.ID,
		StartDate: toStoredDate(r.StartDate),
		EndDate:   toStoredDate(r.EndDate),
		FullName:  r.FullName,
		Email:     r.Email,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (d *reservationDocument) toModel() *model.Reservation {
	return &model.Reservation{
		ID:        d.ID,
		StartDate: fromStoredDate(d.StartDate),
		EndDate:   fromStoredDate(d.EndDate),
		FullName:  d.FullName,
		Email:     d.Email,
		Version:   d.Version,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// overlapFilter matches stored intervals intersecting [start, end).
func overlapFilter(start, end civil.Date) bson.M {
	return bson.M{
		"start_date": bson.M{"$lt": toStoredDate(end)},
		"end_date":   bson.M{"$gt": toStoredDate(start)},
	}
}

type mongoReservationRepository struct {
	cfg        *config.Config
	client     *mongo.Client
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	client := cfg.Client.Mongo
	db := client.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		client:     client,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(client, db.Collection(GuardCollectionName), cfg.CampsiteID),
	}
}

// withTimeout bounds ctx by timeout, keeping an earlier deadline. Inside a
// transaction the session context is returned unchanged; the transaction
// owns its own deadline.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) Overlaps(ctx context.Context, start, end civil.Date, excludeID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := overlapFilter(start, end)
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping reservations: %w", err)
	}
	return n > 0, nil
}

// DatesBooked reads through a snapshot session so that a reservation moved
// by a concurrent modify is seen either at its old or its new dates, never
// both or neither.
func (r *mongoReservationRepository) DatesBooked(ctx context.Context, from, to civil.Date) (model.DateSet, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	session, err := r.client.StartSession(options.Session().SetSnapshot(true))
	if err != nil {
		return nil, fmt.Errorf("failed to start snapshot session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	booked := model.NewDateSet()
	err = mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		opts := options.Find().SetProjection(bson.M{"start_date": 1, "end_date": 1})
		cursor, err := r.collection.Find(sc, overlapFilter(from, to), opts)
		if err != nil {
			return err
		}
		defer cursor.Close(sc)

		for cursor.Next(sc) {
			var doc reservationDocument
			if err := cursor.Decode(&doc); err != nil {
				return err
			}
			start, end := fromStoredDate(doc.StartDate), fromStoredDate(doc.EndDate)
			booked.AddRange(model.MaxDate(start, from), model.MinDate(end, to))
		}
		return cursor.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read booked dates: %w", err)
	}
	return booked, nil
}

func (r *mongoReservationRepository) Insert(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	res.CreatedAt = res.CreatedAt.UTC().Truncate(time.Millisecond)
	res.UpdatedAt = res.CreatedAt
	res.Version = 1

	if _, err := r.collection.InsertOne(ctx, toDocument(res)); err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) Update(ctx context.Context, id string, start, end civil.Date) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"start_date": toStoredDate(start),
			"end_date":   toStoredDate(end),
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc reservationDocument
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	return doc.toModel(), nil
}

func (r *mongoReservationRepository) Remove(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if result.DeletedCount == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doc reservationDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return doc.toModel(), nil
}

func (r *mongoReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reservationDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	reservations := make([]*model.Reservation, 0, len(docs))
	for i := range docs {
		reservations = append(reservations, docs[i].toModel())
	}
	return reservations, nil
}

func (r *mongoReservationRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoReservationRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.client.Ping(ctx, readpref.Primary())
}
