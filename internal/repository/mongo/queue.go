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

type leaseDoc struct {
	Holder   string `bson:"holder"`
	Deadline int64  `bson:"deadline"`
}

type queueJobDoc struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	DedupKey  string    `bson:"dedupKey,omitempty"`
	Payload   []byte    `bson:"payload,omitempty"`
	Attempt   int       `bson:"attempt"`
	NextRun   int64     `bson:"nextRun"`
	Lease     *leaseDoc `bson:"lease,omitempty"`
	State     string    `bson:"state"`
	CreatedAt int64     `bson:"createdAt"`
	UpdatedAt int64     `bson:"updatedAt"`
	LastError string    `bson:"lastError,omitempty"`
}

// QueueStore is a Mongo-backed domain.QueueRepository. Lease uses a
// single FindOneAndUpdate so two workers racing for the same job can
// never both win the claim.
type QueueStore struct {
	collection *mongo.Collection
}

func NewQueueStore(client *mongo.Client, dbName, collectionName string) *QueueStore {
	return &QueueStore{collection: client.Database(dbName).Collection(collectionName)}
}

func (s *QueueStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "kind", Value: 1}, {Key: "nextRun", Value: 1}}},
		{Keys: bson.D{{Key: "dedupKey", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"dedupKey": bson.M{"$exists": true}})},
	})
	return err
}

func (s *QueueStore) Enqueue(ctx context.Context, job domain.QueueJob) (domain.QueueJob, error) {
	doc := toQueueJobDoc(job)
	if doc.DedupKey != "" {
		var existing queueJobDoc
		err := s.collection.FindOneAndUpdate(ctx,
			bson.M{"dedupKey": doc.DedupKey, "state": string(domain.JobPending)},
			bson.M{"$set": bson.M{"payload": doc.Payload, "nextRun": doc.NextRun, "updatedAt": doc.UpdatedAt}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&existing)
		if err == nil {
			return fromQueueJobDoc(existing), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return domain.QueueJob{}, domain.Classify(domain.Transient, err)
		}
	}
	_, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.QueueJob{}, domain.Classify(domain.Conflict, domain.ErrAlreadyExists)
		}
		return domain.QueueJob{}, domain.Classify(domain.Transient, err)
	}
	return job, nil
}

// Lease atomically claims the earliest Pending job of one of kinds
// whose NextRun <= now, transitioning it to Running under holder.
func (s *QueueStore) Lease(ctx context.Context, kinds []domain.JobKind, now time.Time, holder string, leaseDuration time.Duration) (*domain.QueueJob, error) {
	kindValues := make([]string, 0, len(kinds))
	for _, k := range kinds {
		kindValues = append(kindValues, string(k))
	}

	filter := bson.M{
		"state":   string(domain.JobPending),
		"kind":    bson.M{"$in": kindValues},
		"nextRun": bson.M{"$lte": now.Unix()},
	}
	update := bson.M{
		"$set": bson.M{
			"state": string(domain.JobRunning),
			"lease": leaseDoc{Holder: holder, Deadline: now.Add(leaseDuration).Unix()},
			"updatedAt": now.Unix(),
		},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "nextRun", Value: 1}}).
		SetReturnDocument(options.After)

	var doc queueJobDoc
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, domain.Classify(domain.Transient, err)
	}
	job := fromQueueJobDoc(doc)
	return &job, nil
}

func (s *QueueStore) Complete(ctx context.Context, id string, holder string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "lease.holder": holder},
		bson.M{"$set": bson.M{"state": string(domain.JobSucceeded), "updatedAt": time.Now().Unix()}},
	)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	if res.MatchedCount == 0 {
		return domain.Classify(domain.Conflict, domain.ErrNoLease)
	}
	return nil
}

func (s *QueueStore) Retry(ctx context.Context, id string, holder string, nextRun time.Time, attempt int, lastErr string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "lease.holder": holder},
		bson.M{
			"$set": bson.M{
				"state":     string(domain.JobPending),
				"nextRun":   nextRun.Unix(),
				"attempt":   attempt,
				"lastError": lastErr,
				"updatedAt": time.Now().Unix(),
			},
			"$unset": bson.M{"lease": ""},
		},
	)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	if res.MatchedCount == 0 {
		return domain.Classify(domain.Conflict, domain.ErrNoLease)
	}
	return nil
}

func (s *QueueStore) Abandon(ctx context.Context, id string, holder string, lastErr string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "lease.holder": holder},
		bson.M{"$set": bson.M{"state": string(domain.JobAbandoned), "lastError": lastErr, "updatedAt": time.Now().Unix()}},
	)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	if res.MatchedCount == 0 {
		return domain.Classify(domain.Conflict, domain.ErrNoLease)
	}
	return nil
}

// ReapExpired returns every Running job whose lease deadline has
// passed back to Pending, preserving its attempt counter.
func (s *QueueStore) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.collection.UpdateMany(ctx,
		bson.M{"state": string(domain.JobRunning), "lease.deadline": bson.M{"$lte": now.Unix()}},
		bson.M{
			"$set":   bson.M{"state": string(domain.JobPending), "updatedAt": now.Unix()},
			"$unset": bson.M{"lease": ""},
		},
	)
	if err != nil {
		return 0, domain.Classify(domain.Transient, err)
	}
	return int(res.ModifiedCount), nil
}

func (s *QueueStore) CountRunning(ctx context.Context, kind domain.JobKind) (int, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"state": string(domain.JobRunning), "kind": string(kind)})
	if err != nil {
		return 0, domain.Classify(domain.Transient, err)
	}
	return int(count), nil
}

func (s *QueueStore) PruneTerminal(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{
		"state":     bson.M{"$in": []string{string(domain.JobSucceeded), string(domain.JobAbandoned)}},
		"updatedAt": bson.M{"$lt": olderThan.Unix()},
	})
	if err != nil {
		return 0, domain.Classify(domain.Transient, err)
	}
	return int(res.DeletedCount), nil
}

func toQueueJobDoc(j domain.QueueJob) queueJobDoc {
	var lease *leaseDoc
	if j.Lease != nil {
		lease = &leaseDoc{Holder: j.Lease.Holder, Deadline: j.Lease.Deadline.Unix()}
	}
	return queueJobDoc{
		ID:        j.ID,
		Kind:      string(j.Kind),
		DedupKey:  j.DedupKey,
		Payload:   j.Payload,
		Attempt:   j.Attempt,
		NextRun:   j.NextRun.Unix(),
		Lease:     lease,
		State:     string(j.State),
		CreatedAt: j.CreatedAt.Unix(),
		UpdatedAt: j.UpdatedAt.Unix(),
		LastError: j.LastError,
	}
}

func fromQueueJobDoc(doc queueJobDoc) domain.QueueJob {
	var lease *domain.Lease
	if doc.Lease != nil {
		lease = &domain.Lease{Holder: doc.Lease.Holder, Deadline: time.Unix(doc.Lease.Deadline, 0).UTC()}
	}
	return domain.QueueJob{
		ID:        doc.ID,
		Kind:      domain.JobKind(doc.Kind),
		DedupKey:  doc.DedupKey,
		Payload:   doc.Payload,
		Attempt:   doc.Attempt,
		NextRun:   time.Unix(doc.NextRun, 0).UTC(),
		Lease:     lease,
		State:     domain.JobState(doc.State),
		CreatedAt: time.Unix(doc.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(doc.UpdatedAt, 0).UTC(),
		LastError: doc.LastError,
	}
}
