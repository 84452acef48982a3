package mongo

import (
	"context"
	"fmt"

	apperrors "campsite/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TransactionFunc runs inside a transaction. ctx carries the session, so
// every collection call made with it joins the transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client  *mongo.Client
	guard   *mongo.Collection
	guardID string
}

// NewTransactionManager runs callbacks in multi-document transactions. When
// guard is set, every transaction first increments the guard document with
// id guardID. Two transactions touching the same guard always write-conflict,
// so the driver aborts and retries one of them instead of letting both
// commit on stale reads.
func NewTransactionManager(client *mongo.Client, guard *mongo.Collection, guardID string) TransactionManager {
	return &mongoTransactionManager{
		client:  client,
		guard:   guard,
		guardID: guardID,
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		if m.guard != nil {
			_, err := m.guard.UpdateOne(sessCtx,
				bson.M{"_id": m.guardID},
				bson.M{"$inc": bson.M{"version": 1}},
				options.Update().SetUpsert(true),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to bump transaction guard: %w", err)
			}
		}
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
