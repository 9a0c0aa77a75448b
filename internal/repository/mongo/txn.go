package mongo

import (
	"context"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// TxRunner runs fn inside a single Mongo session transaction, for
// mutations that span more than one repository (e.g. deleting a
// download handle and writing its history record together).
type TxRunner struct {
	client *mongodriver.Client
}

func NewTxRunner(client *mongodriver.Client) *TxRunner {
	return &TxRunner{client: client}
}

func (r *TxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	defer session.EndSession(ctx)

	var fnErr error
	_, err = session.WithTransaction(ctx, func(sessCtx mongodriver.SessionContext) (any, error) {
		fnErr = fn(sessCtx)
		return nil, fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	return nil
}
