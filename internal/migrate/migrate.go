// Package migrate applies ordered, content-hashed startup migrations
// against Mongo: index creation and one-time seed operations. Each
// migration's body is hashed so a previously-applied migration whose
// code has drifted is caught at startup instead of silently skipped.
package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rs/zerolog"
)

// Migration is one named, ordered step. Hash is a stable identifier for
// the migration's body (its source, not its outcome): if a later build
// changes the body of a migration while keeping its Name, Apply rejects
// the drift rather than silently skipping it. Migrations are matched by
// Name only, so a renamed migration runs again as a new one and a
// reordering is not detected.
type Migration struct {
	Name string
	Hash string
	Up   func(ctx context.Context, db *mongo.Database) error
}

// NewMigration derives Hash from body so authors never hand-compute it.
func NewMigration(name, body string, up func(ctx context.Context, db *mongo.Database) error) Migration {
	sum := sha256.Sum256([]byte(body))
	return Migration{Name: name, Hash: hex.EncodeToString(sum[:]), Up: up}
}

type ledgerDoc struct {
	Name      string `bson:"_id"`
	Hash      string `bson:"hash"`
	AppliedAt int64  `bson:"appliedAt"`
}

const ledgerCollection = "schema_migrations"

// Runner applies a fixed, ordered list of migrations against a single
// Mongo database, recording each in the ledger collection.
type Runner struct {
	db         *mongo.Database
	migrations []Migration
	log        zerolog.Logger
}

func New(db *mongo.Database, migrations []Migration, log zerolog.Logger) *Runner {
	return &Runner{db: db, migrations: migrations, log: log}
}

// Apply runs every migration not yet recorded in the ledger, in order.
// If a migration's name IS recorded but with a different hash, Apply
// fails closed: the deployed code no longer matches what ran, and
// proceeding risks silently skipping a behavior change.
func (r *Runner) Apply(ctx context.Context) error {
	ledger := r.db.Collection(ledgerCollection)
	if _, err := ledger.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("ensure migration ledger index: %w", err)
	}

	applied := map[string]string{}
	cur, err := ledger.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("read migration ledger: %w", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc ledgerDoc
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decode migration ledger entry: %w", err)
		}
		applied[doc.Name] = doc.Hash
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("iterate migration ledger: %w", err)
	}

	for _, m := range r.migrations {
		if hash, ok := applied[m.Name]; ok {
			if hash != m.Hash {
				return fmt.Errorf("migration %q hash mismatch: ledger has %s, code has %s", m.Name, hash, m.Hash)
			}
			r.log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}

		r.log.Info().Str("migration", m.Name).Msg("applying migration")
		if err := m.Up(ctx, r.db); err != nil {
			return fmt.Errorf("migration %q: %w", m.Name, err)
		}

		_, err := ledger.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: m.Name}},
			bson.D{{Key: "$set", Value: ledgerDoc{Name: m.Name, Hash: m.Hash, AppliedAt: time.Now().Unix()}}},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("record migration %q: %w", m.Name, err)
		}
	}
	return nil
}
