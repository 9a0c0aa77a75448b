package migrate

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// Collection names match what cmd/orchestrator wires the repository
// layer's stores with; kept here too so index migrations don't depend
// on construction order at startup.
const (
	CollectionMovies    = "movies"
	CollectionQueue     = "queue_jobs"
	CollectionDownloads = "download_handles"
	CollectionHistory   = "history"
	CollectionBlocklist = "blocklist"
	CollectionReleases  = "release_cache"
	CollectionProfiles  = "quality_profiles"
)

const defaultProfileID = "default"

// Builtin returns the orchestrator's fixed, ordered migration list:
// one index migration per collection, mirroring each repository
// store's EnsureIndexes, followed by a one-time default profile seed.
// Collection names are duplicated from the mongo store constructors
// deliberately: this list must stay applicable even if a future
// refactor changes how stores are wired in cmd/orchestrator.
func Builtin() []Migration {
	return []Migration{
		NewMigration("001_movies_indexes", "movies:status,monitored,catalogId-unique", func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(CollectionMovies).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "status", Value: 1}}},
				{Keys: bson.D{{Key: "monitored", Value: 1}}},
				{Keys: bson.D{{Key: "catalogId", Value: 1}}, Options: options.Index().SetUnique(true)},
			})
			return err
		}),
		NewMigration("002_queue_jobs_indexes", "queue_jobs:kind+runAt,leaseExpiresAt,dedupeKey-unique", func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(CollectionQueue).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "runAt", Value: 1}}},
				{Keys: bson.D{{Key: "leaseExpiresAt", Value: 1}}},
				{Keys: bson.D{{Key: "dedupeKey", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			})
			return err
		}),
		NewMigration("003_download_handles_indexes", "download_handles:movieId,externalId", func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(CollectionDownloads).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "movieId", Value: 1}}},
				{Keys: bson.D{{Key: "externalId", Value: 1}}},
			})
			return err
		}),
		NewMigration("004_history_indexes", "history:movieId+createdAt", func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(CollectionHistory).Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys: bson.D{{Key: "movieId", Value: 1}, {Key: "createdAt", Value: -1}},
			})
			return err
		}),
		NewMigration("005_blocklist_indexes", "blocklist:fingerprint-unique,expiresAt-ttl", func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(CollectionBlocklist).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "fingerprint", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
			})
			return err
		}),
		NewMigration("006_release_cache_indexes", "release_cache:movieId+fingerprint-unique,expiresAt-ttl", func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(CollectionReleases).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "movieId", Value: 1}, {Key: "fingerprint", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
			})
			return err
		}),
		NewMigration("007_quality_profiles_indexes", "quality_profiles:name", func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(CollectionProfiles).Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys: bson.D{{Key: "name", Value: 1}},
			})
			return err
		}),
		NewMigration("008_seed_default_profile", "quality_profiles:seed default HD-1080p profile if absent", seedDefaultProfile),
	}
}

// seedDefaultProfile inserts a starter profile so a fresh deployment
// has at least one usable QualityProfile before an operator configures
// their own. It is a no-op if a document with this _id already exists,
// which also makes it safe to re-run if the hash check above ever
// needs bypassing manually in the ledger.
func seedDefaultProfile(ctx context.Context, db *mongo.Database) error {
	doc := bson.M{
		"_id":  defaultProfileID,
		"name": "HD-1080p",
		"tiers": []bson.M{
			{"tier": "webdl-1080p", "allowed": true, "preferred": true, "baseScore": 100},
			{"tier": "bluray-1080p", "allowed": true, "preferred": true, "baseScore": 110},
			{"tier": "webdl-720p", "allowed": true, "preferred": false, "baseScore": 60},
			{"tier": "hdtv-1080p", "allowed": true, "preferred": false, "baseScore": 50},
		},
		"cutoff":          "bluray-1080p",
		"minFormatScore":  0,
		"upgradeAllowed":  true,
		"freeleechBias":   0,
		"preferredBonus":  10,
		"properBonusUnit": 5,
	}
	_, err := db.Collection(CollectionProfiles).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: defaultProfileID}},
		bson.D{{Key: "$setOnInsert", Value: doc}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	return nil
}
