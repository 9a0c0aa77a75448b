// Package mongo holds the Mongo-backed implementations of the core
// domain's repository ports, following the teacher's document-mapping
// conventions: a _doc struct per collection, ErrNotFound/ErrAlreadyExists
// mapping on the driver's sentinel errors, and an EnsureIndexes method
// per collection.
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

type bestFileDoc struct {
	Path        string            `bson:"path"`
	SizeBytes   int64             `bson:"sizeBytes"`
	Fingerprint string            `bson:"fingerprint"`
	Quality     parsedQualityDoc  `bson:"quality"`
	ImportedAt  int64             `bson:"importedAt"`
}

type parsedQualityDoc struct {
	Resolution   string   `bson:"resolution"`
	Source       string   `bson:"source"`
	VideoCodec   string   `bson:"videoCodec,omitempty"`
	AudioCodec   string   `bson:"audioCodec,omitempty"`
	AudioChannel string   `bson:"audioChannel,omitempty"`
	HDR          []string `bson:"hdr,omitempty"`
	Edition      string   `bson:"edition,omitempty"`
	ProperTier   int      `bson:"properTier"`
	Group        string   `bson:"group,omitempty"`
	Languages    []string `bson:"languages,omitempty"`
	Subtitles    []string `bson:"subtitles,omitempty"`
}

type movieDoc struct {
	ID        string       `bson:"_id"`
	CatalogID string       `bson:"catalogId"`
	Title     string       `bson:"title"`
	Year      int          `bson:"year"`
	Monitored bool         `bson:"monitored"`
	ProfileID string       `bson:"profileId"`
	BestFile  *bestFileDoc `bson:"bestFile,omitempty"`
	Status    string       `bson:"status"`
	CreatedAt int64        `bson:"createdAt"`
	UpdatedAt int64        `bson:"updatedAt"`
}

// MovieStore is a Mongo-backed domain.MovieRepository.
type MovieStore struct {
	collection *mongo.Collection
}

func NewMovieStore(client *mongo.Client, dbName, collectionName string) *MovieStore {
	return &MovieStore{collection: client.Database(dbName).Collection(collectionName)}
}

func (s *MovieStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "monitored", Value: 1}}},
		{Keys: bson.D{{Key: "catalogId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (s *MovieStore) Create(ctx context.Context, m domain.Movie) error {
	_, err := s.collection.InsertOne(ctx, toMovieDoc(m))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Classify(domain.Conflict, domain.ErrAlreadyExists)
		}
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func (s *MovieStore) Get(ctx context.Context, id string) (domain.Movie, error) {
	var doc movieDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Movie{}, domain.Classify(domain.NotFound, domain.ErrNotFound)
		}
		return domain.Movie{}, domain.Classify(domain.Transient, err)
	}
	return fromMovieDoc(doc), nil
}

func (s *MovieStore) Update(ctx context.Context, m domain.Movie) error {
	doc := toMovieDoc(m)
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	if res.MatchedCount == 0 {
		return domain.Classify(domain.NotFound, domain.ErrNotFound)
	}
	return nil
}

func (s *MovieStore) ListByStatus(ctx context.Context, status domain.MovieStatus) ([]domain.Movie, error) {
	return s.list(ctx, bson.M{"status": string(status)})
}

func (s *MovieStore) ListMonitored(ctx context.Context) ([]domain.Movie, error) {
	return s.list(ctx, bson.M{"monitored": true})
}

func (s *MovieStore) list(ctx context.Context, filter bson.M) ([]domain.Movie, error) {
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}
	defer cursor.Close(ctx)

	var docs []movieDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}

	out := make([]domain.Movie, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromMovieDoc(d))
	}
	return out, nil
}

func toMovieDoc(m domain.Movie) movieDoc {
	var bf *bestFileDoc
	if m.BestFile != nil {
		bf = &bestFileDoc{
			Path:        m.BestFile.Path,
			SizeBytes:   m.BestFile.SizeBytes,
			Fingerprint: m.BestFile.Fingerprint,
			Quality:     toQualityDoc(m.BestFile.Quality),
			ImportedAt:  m.BestFile.ImportedAt.Unix(),
		}
	}
	return movieDoc{
		ID:        m.ID,
		CatalogID: m.CatalogID,
		Title:     m.Title,
		Year:      m.Year,
		Monitored: m.Monitored,
		ProfileID: m.ProfileID,
		BestFile:  bf,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt.Unix(),
		UpdatedAt: m.UpdatedAt.Unix(),
	}
}

func fromMovieDoc(doc movieDoc) domain.Movie {
	var bf *domain.BestFile
	if doc.BestFile != nil {
		bf = &domain.BestFile{
			Path:        doc.BestFile.Path,
			SizeBytes:   doc.BestFile.SizeBytes,
			Fingerprint: doc.BestFile.Fingerprint,
			Quality:     fromQualityDoc(doc.BestFile.Quality),
			ImportedAt:  time.Unix(doc.BestFile.ImportedAt, 0).UTC(),
		}
	}
	return domain.Movie{
		ID:        doc.ID,
		CatalogID: doc.CatalogID,
		Title:     doc.Title,
		Year:      doc.Year,
		Monitored: doc.Monitored,
		ProfileID: doc.ProfileID,
		BestFile:  bf,
		Status:    domain.MovieStatus(doc.Status),
		CreatedAt: time.Unix(doc.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(doc.UpdatedAt, 0).UTC(),
	}
}

func toQualityDoc(q domain.ParsedQuality) parsedQualityDoc {
	hdr := make([]string, 0, len(q.HDR))
	for _, h := range q.HDR {
		hdr = append(hdr, string(h))
	}
	return parsedQualityDoc{
		Resolution:   string(q.Resolution),
		Source:       string(q.Source),
		VideoCodec:   q.VideoCodec,
		AudioCodec:   q.AudioCodec,
		AudioChannel: q.AudioChannel,
		HDR:          hdr,
		Edition:      q.Edition,
		ProperTier:   int(q.ProperTier),
		Group:        q.Group,
		Languages:    q.Languages,
		Subtitles:    q.Subtitles,
	}
}

func fromQualityDoc(doc parsedQualityDoc) domain.ParsedQuality {
	hdr := make([]domain.HDRFormat, 0, len(doc.HDR))
	for _, h := range doc.HDR {
		hdr = append(hdr, domain.HDRFormat(h))
	}
	return domain.ParsedQuality{
		Resolution:   domain.Resolution(doc.Resolution),
		Source:       domain.Source(doc.Source),
		VideoCodec:   doc.VideoCodec,
		AudioCodec:   doc.AudioCodec,
		AudioChannel: doc.AudioChannel,
		HDR:          hdr,
		Edition:      doc.Edition,
		ProperTier:   domain.ProperTier(doc.ProperTier),
		Group:        doc.Group,
		Languages:    doc.Languages,
		Subtitles:    doc.Subtitles,
	}
}
