package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reelwatch/orchestrator/internal/domain"
)

type downloadHandleDoc struct {
	ID          string  `bson:"_id"`
	ExternalID  string  `bson:"externalId"`
	MovieID     string  `bson:"movieId"`
	Fingerprint string  `bson:"fingerprint"`
	State       string  `bson:"state"`
	Progress    float64 `bson:"progress"`
	PayloadPath string  `bson:"payloadPath,omitempty"`
	CreatedAt   int64   `bson:"createdAt"`
	UpdatedAt   int64   `bson:"updatedAt"`
}

// nonTerminalStates lists the states GetActiveForMovie considers "a
// download is already in flight for this movie", enforcing the at
// most one non-terminal handle per movie invariant.
var nonTerminalStates = []string{
	string(domain.DownloadQueued),
	string(domain.DownloadDownloading),
	string(domain.DownloadPaused),
}

// DownloadStore is a Mongo-backed domain.DownloadRepository.
type DownloadStore struct {
	collection *mongo.Collection
}

func NewDownloadStore(client *mongo.Client, dbName, collectionName string) *DownloadStore {
	return &DownloadStore{collection: client.Database(dbName).Collection(collectionName)}
}

func (s *DownloadStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "movieId", Value: 1}, {Key: "state", Value: 1}}},
		{Keys: bson.D{{Key: "fingerprint", Value: 1}}},
	})
	return err
}

func (s *DownloadStore) Create(ctx context.Context, h domain.DownloadHandle) error {
	_, err := s.collection.InsertOne(ctx, toDownloadDoc(h))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Classify(domain.Conflict, domain.ErrAlreadyExists)
		}
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func (s *DownloadStore) Get(ctx context.Context, id string) (domain.DownloadHandle, error) {
	var doc downloadHandleDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.DownloadHandle{}, domain.Classify(domain.NotFound, domain.ErrNotFound)
		}
		return domain.DownloadHandle{}, domain.Classify(domain.Transient, err)
	}
	return fromDownloadDoc(doc), nil
}

func (s *DownloadStore) GetActiveForMovie(ctx context.Context, movieID string) (*domain.DownloadHandle, error) {
	var doc downloadHandleDoc
	err := s.collection.FindOne(ctx, bson.M{
		"movieId": movieID,
		"state":   bson.M{"$in": nonTerminalStates},
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, domain.Classify(domain.Transient, err)
	}
	h := fromDownloadDoc(doc)
	return &h, nil
}

func (s *DownloadStore) Update(ctx context.Context, h domain.DownloadHandle) error {
	doc := toDownloadDoc(h)
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	_ = res
	return nil
}

func (s *DownloadStore) Delete(ctx context.Context, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	if res.DeletedCount == 0 {
		return domain.Classify(domain.NotFound, domain.ErrNotFound)
	}
	return nil
}

func toDownloadDoc(h domain.DownloadHandle) downloadHandleDoc {
	return downloadHandleDoc{
		ID:          h.ID,
		ExternalID:  h.ExternalID,
		MovieID:     h.MovieID,
		Fingerprint: h.Fingerprint,
		State:       string(h.State),
		Progress:    h.Progress,
		PayloadPath: h.PayloadPath,
		CreatedAt:   h.CreatedAt.Unix(),
		UpdatedAt:   h.UpdatedAt.Unix(),
	}
}

func fromDownloadDoc(doc downloadHandleDoc) domain.DownloadHandle {
	return domain.DownloadHandle{
		ID:          doc.ID,
		ExternalID:  doc.ExternalID,
		MovieID:     doc.MovieID,
		Fingerprint: doc.Fingerprint,
		State:       domain.DownloadState(doc.State),
		Progress:    doc.Progress,
		PayloadPath: doc.PayloadPath,
		CreatedAt:   time.Unix(doc.CreatedAt, 0).UTC(),
		UpdatedAt:   time.Unix(doc.UpdatedAt, 0).UTC(),
	}
}
