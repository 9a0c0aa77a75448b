package customformat

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reelwatch/orchestrator/internal/domain"
)

type conditionDoc struct {
	Field  string   `bson:"field"`
	Values []string `bson:"values"`
}

type specDoc struct {
	Name       string         `bson:"_id"`
	Score      int            `bson:"score"`
	Conditions []conditionDoc `bson:"conditions"`
}

// Store is a Mongo-backed catalog of named custom format definitions,
// used by profile.Store to resolve a profile's CustomFormats names.
type Store struct {
	collection *mongo.Collection
}

func New(client *mongo.Client, dbName, collectionName string) *Store {
	return &Store{collection: client.Database(dbName).Collection(collectionName)}
}

func (s *Store) Get(ctx context.Context, name string) (Spec, error) {
	var doc specDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Spec{}, domain.Classify(domain.NotFound, domain.ErrNotFound)
		}
		return Spec{}, domain.Classify(domain.Transient, err)
	}
	return fromDoc(doc), nil
}

func (s *Store) Upsert(ctx context.Context, spec Spec) error {
	doc := toDoc(spec)
	_, err := s.collection.ReplaceOne(
		ctx,
		bson.M{"_id": doc.Name},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]Spec, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}
	defer cursor.Close(ctx)

	var docs []specDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}

	out := make([]Spec, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func toDoc(spec Spec) specDoc {
	conditions := make([]conditionDoc, 0, len(spec.Conditions))
	for _, c := range spec.Conditions {
		conditions = append(conditions, conditionDoc{Field: string(c.Field), Values: c.Values})
	}
	return specDoc{Name: spec.Name, Score: spec.Score, Conditions: conditions}
}

func fromDoc(doc specDoc) Spec {
	conditions := make([]Condition, 0, len(doc.Conditions))
	for _, c := range doc.Conditions {
		conditions = append(conditions, Condition{Field: Field(c.Field), Values: c.Values})
	}
	return Spec{Name: doc.Name, Score: doc.Score, Conditions: conditions}
}
