// Package profile persists Quality Profiles. Custom format rules
// cannot round-trip as Go closures, so a profile document stores the
// names of its custom formats and the store resolves each one through
// a customformat.Store at read time.
package profile

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reelwatch/orchestrator/internal/customformat"
	"github.com/reelwatch/orchestrator/internal/domain"
)

type tierRuleDoc struct {
	Tier      string `bson:"tier"`
	Allowed   bool   `bson:"allowed"`
	Preferred bool   `bson:"preferred"`
	BaseScore int    `bson:"baseScore"`
	MinBytes  int64  `bson:"minBytes,omitempty"`
	MaxBytes  int64  `bson:"maxBytes,omitempty"`
}

type profileDoc struct {
	ID              string        `bson:"_id"`
	Name            string        `bson:"name"`
	Tiers           []tierRuleDoc `bson:"tiers"`
	Cutoff          string        `bson:"cutoff"`
	MinFormatScore  int           `bson:"minFormatScore"`
	CustomFormats   []string      `bson:"customFormats,omitempty"` // names resolved against customformat.Store
	UpgradeAllowed  bool          `bson:"upgradeAllowed"`
	FreeleechBias   int           `bson:"freeleechBias"`
	PreferredBonus  int           `bson:"preferredBonus"`
	ProperBonusUnit int           `bson:"properBonusUnit"`
}

// FormatResolver looks up compiled custom format rules by name, backed
// by customformat.Store.
type FormatResolver interface {
	Get(ctx context.Context, name string) (customformat.Spec, error)
}

// Store is a Mongo-backed domain.ProfileRepository.
type Store struct {
	collection *mongo.Collection
	formats    FormatResolver
}

func New(client *mongo.Client, dbName, collectionName string, formats FormatResolver) *Store {
	return &Store{collection: client.Database(dbName).Collection(collectionName), formats: formats}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	})
	return err
}

func (s *Store) Get(ctx context.Context, id string) (domain.QualityProfile, error) {
	var doc profileDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.QualityProfile{}, domain.Classify(domain.NotFound, domain.ErrNotFound)
		}
		return domain.QualityProfile{}, domain.Classify(domain.Transient, err)
	}
	return s.hydrate(ctx, doc)
}

func (s *Store) Upsert(ctx context.Context, p domain.QualityProfile) error {
	doc := toDoc(p)
	_, err := s.collection.ReplaceOne(
		ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.QualityProfile, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}
	defer cursor.Close(ctx)

	var docs []profileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}

	out := make([]domain.QualityProfile, 0, len(docs))
	for _, d := range docs {
		p, err := s.hydrate(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) hydrate(ctx context.Context, doc profileDoc) (domain.QualityProfile, error) {
	tiers := make([]domain.TierRule, 0, len(doc.Tiers))
	for _, t := range doc.Tiers {
		tiers = append(tiers, domain.TierRule{
			Tier:      domain.Tier(t.Tier),
			Allowed:   t.Allowed,
			Preferred: t.Preferred,
			BaseScore: t.BaseScore,
			MinBytes:  t.MinBytes,
			MaxBytes:  t.MaxBytes,
		})
	}

	rules := make([]domain.CustomFormatRule, 0, len(doc.CustomFormats))
	for _, name := range doc.CustomFormats {
		spec, err := s.formats.Get(ctx, name)
		if err != nil {
			return domain.QualityProfile{}, err
		}
		rules = append(rules, spec.Compile())
	}

	return domain.QualityProfile{
		ID:              doc.ID,
		Name:            doc.Name,
		Tiers:           tiers,
		Cutoff:          domain.Tier(doc.Cutoff),
		MinFormatScore:  doc.MinFormatScore,
		CustomFormats:   rules,
		UpgradeAllowed:  doc.UpgradeAllowed,
		FreeleechBias:   doc.FreeleechBias,
		PreferredBonus:  doc.PreferredBonus,
		ProperBonusUnit: doc.ProperBonusUnit,
	}, nil
}

func toDoc(p domain.QualityProfile) profileDoc {
	tiers := make([]tierRuleDoc, 0, len(p.Tiers))
	for _, t := range p.Tiers {
		tiers = append(tiers, tierRuleDoc{
			Tier:      string(t.Tier),
			Allowed:   t.Allowed,
			Preferred: t.Preferred,
			BaseScore: t.BaseScore,
			MinBytes:  t.MinBytes,
			MaxBytes:  t.MaxBytes,
		})
	}

	names := make([]string, 0, len(p.CustomFormats))
	for _, r := range p.CustomFormats {
		names = append(names, r.Name)
	}

	return profileDoc{
		ID:              p.ID,
		Name:            p.Name,
		Tiers:           tiers,
		Cutoff:          string(p.Cutoff),
		MinFormatScore:  p.MinFormatScore,
		CustomFormats:   names,
		UpgradeAllowed:  p.UpgradeAllowed,
		FreeleechBias:   p.FreeleechBias,
		PreferredBonus:  p.PreferredBonus,
		ProperBonusUnit: p.ProperBonusUnit,
	}
}
