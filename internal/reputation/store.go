// Package reputation persists scene-group trust records populated by
// an out-of-band analyzer; this package only reads and writes what it
// is given, never infers a tier from a release title itself.
package reputation

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reelwatch/orchestrator/internal/domain"
)

type recordDoc struct {
	GroupKey string `bson:"_id"`
	Tier     string `bson:"tier"`
	Score    int    `bson:"score"`
}

// Store is a Mongo-backed domain.ReputationRepository.
type Store struct {
	collection *mongo.Collection
}

func New(client *mongo.Client, dbName, collectionName string) *Store {
	return &Store{collection: client.Database(dbName).Collection(collectionName)}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tier", Value: 1}},
	})
	return err
}

func (s *Store) Get(ctx context.Context, canonicalGroup string) (domain.ReputationRecord, error) {
	var doc recordDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": canonicalGroup}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ReputationRecord{}, domain.Classify(domain.NotFound, domain.ErrNotFound)
		}
		return domain.ReputationRecord{}, domain.Classify(domain.Transient, err)
	}
	return fromDoc(doc), nil
}

func (s *Store) Upsert(ctx context.Context, rec domain.ReputationRecord) error {
	doc := toDoc(rec)
	_, err := s.collection.ReplaceOne(
		ctx,
		bson.M{"_id": doc.GroupKey},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.ReputationRecord, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}
	defer cursor.Close(ctx)

	var docs []recordDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}

	out := make([]domain.ReputationRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func toDoc(rec domain.ReputationRecord) recordDoc {
	return recordDoc{GroupKey: rec.GroupKey, Tier: string(rec.Tier), Score: rec.Score}
}

func fromDoc(doc recordDoc) domain.ReputationRecord {
	return domain.ReputationRecord{GroupKey: doc.GroupKey, Tier: domain.ReputationTier(doc.Tier), Score: doc.Score}
}
