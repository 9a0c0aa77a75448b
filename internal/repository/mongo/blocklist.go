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

type blocklistEntryDoc struct {
	Fingerprint string `bson:"_id"`
	Reason      string `bson:"reason,omitempty"`
	CreatedAt   int64  `bson:"createdAt"`
	ExpiresAt   int64  `bson:"expiresAt,omitempty"`
}

// BlocklistStore is a Mongo-backed domain.BlocklistRepository.
type BlocklistStore struct {
	collection *mongo.Collection
}

func NewBlocklistStore(client *mongo.Client, dbName, collectionName string) *BlocklistStore {
	return &BlocklistStore{collection: client.Database(dbName).Collection(collectionName)}
}

func (s *BlocklistStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expiresAt", Value: 1}},
	})
	return err
}

func (s *BlocklistStore) Add(ctx context.Context, entry domain.BlocklistEntry) error {
	doc := toBlocklistDoc(entry)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.Fingerprint}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func (s *BlocklistStore) IsBlocked(ctx context.Context, fingerprint string, now time.Time) (bool, error) {
	var doc blocklistEntryDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": fingerprint}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, domain.Classify(domain.Transient, err)
	}
	entry := fromBlocklistDoc(doc)
	return !entry.Expired(now), nil
}

func (s *BlocklistStore) ListActive(ctx context.Context, now time.Time) ([]domain.BlocklistEntry, error) {
	cursor, err := s.collection.Find(ctx, bson.M{
		"$or": []bson.M{
			{"expiresAt": bson.M{"$eq": 0}},
			{"expiresAt": bson.M{"$gt": now.Unix()}},
		},
	})
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}
	defer cursor.Close(ctx)

	var docs []blocklistEntryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}

	out := make([]domain.BlocklistEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromBlocklistDoc(d))
	}
	return out, nil
}

func (s *BlocklistStore) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{
		"expiresAt": bson.M{"$gt": 0, "$lte": now.Unix()},
	})
	if err != nil {
		return 0, domain.Classify(domain.Transient, err)
	}
	return int(res.DeletedCount), nil
}

func (s *BlocklistStore) Remove(ctx context.Context, fingerprint string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": fingerprint})
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func toBlocklistDoc(entry domain.BlocklistEntry) blocklistEntryDoc {
	var expires int64
	if !entry.ExpiresAt.IsZero() {
		expires = entry.ExpiresAt.Unix()
	}
	return blocklistEntryDoc{
		Fingerprint: entry.Fingerprint,
		Reason:      entry.Reason,
		CreatedAt:   entry.CreatedAt.Unix(),
		ExpiresAt:   expires,
	}
}

func fromBlocklistDoc(doc blocklistEntryDoc) domain.BlocklistEntry {
	var expires time.Time
	if doc.ExpiresAt > 0 {
		expires = time.Unix(doc.ExpiresAt, 0).UTC()
	}
	return domain.BlocklistEntry{
		Fingerprint: doc.Fingerprint,
		Reason:      doc.Reason,
		CreatedAt:   time.Unix(doc.CreatedAt, 0).UTC(),
		ExpiresAt:   expires,
	}
}
