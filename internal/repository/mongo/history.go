package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reelwatch/orchestrator/internal/domain"
)

type historyRecordDoc struct {
	ID          string `bson:"_id"`
	MovieID     string `bson:"movieId"`
	Fingerprint string `bson:"fingerprint,omitempty"`
	Event       string `bson:"event"`
	Tier        string `bson:"tier,omitempty"`
	Reason      string `bson:"reason,omitempty"`
	CreatedAt   int64  `bson:"createdAt"`
}

// HistoryStore is a Mongo-backed domain.HistoryRepository: an
// append-only audit trail, never updated or deleted.
type HistoryStore struct {
	collection *mongo.Collection
}

func NewHistoryStore(client *mongo.Client, dbName, collectionName string) *HistoryStore {
	return &HistoryStore{collection: client.Database(dbName).Collection(collectionName)}
}

func (s *HistoryStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "movieId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (s *HistoryStore) Append(ctx context.Context, rec domain.HistoryRecord) error {
	_, err := s.collection.InsertOne(ctx, toHistoryDoc(rec))
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func (s *HistoryStore) ListForMovie(ctx context.Context, movieID string) ([]domain.HistoryRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"movieId": movieID}, opts)
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}
	defer cursor.Close(ctx)

	var docs []historyRecordDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}

	out := make([]domain.HistoryRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromHistoryDoc(d))
	}
	return out, nil
}

func toHistoryDoc(rec domain.HistoryRecord) historyRecordDoc {
	return historyRecordDoc{
		ID:          rec.ID,
		MovieID:     rec.MovieID,
		Fingerprint: rec.Fingerprint,
		Event:       rec.Event,
		Tier:        string(rec.Tier),
		Reason:      rec.Reason,
		CreatedAt:   rec.CreatedAt.Unix(),
	}
}

func fromHistoryDoc(doc historyRecordDoc) domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:          doc.ID,
		MovieID:     doc.MovieID,
		Fingerprint: doc.Fingerprint,
		Event:       doc.Event,
		Tier:        domain.Tier(doc.Tier),
		Reason:      doc.Reason,
		CreatedAt:   time.Unix(doc.CreatedAt, 0).UTC(),
	}
}
