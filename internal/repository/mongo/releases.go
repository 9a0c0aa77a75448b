package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/reelwatch/orchestrator/internal/domain"
)

type candidateRationaleDoc struct {
	Fingerprint    string `bson:"fingerprint"`
	Tier           string `bson:"tier"`
	AllowedScore   int    `bson:"allowedScore"`
	PreferredBonus int    `bson:"preferredBonus"`
	FormatScore    int    `bson:"formatScore"`
	ReputationAdj  int    `bson:"reputationAdj"`
	SizeFitness    int    `bson:"sizeFitness"`
	FreeleechBonus int    `bson:"freeleechBonus"`
	ProperBonus    int    `bson:"properBonus"`
	TotalScore     int    `bson:"totalScore"`
	Disqualified   bool   `bson:"disqualified"`
	Disqualifier   string `bson:"disqualifier,omitempty"`
}

type rationaleDoc struct {
	Candidates     []candidateRationaleDoc `bson:"candidates"`
	WinningFPrint  string                  `bson:"winningFingerprint,omitempty"`
	WinningReasons []string                `bson:"winningReasons,omitempty"`
	NoSelectReason string                  `bson:"noSelectReason,omitempty"`
}

type releaseCandidateDoc struct {
	IndexerID   string           `bson:"indexerId"`
	Title       string           `bson:"title"`
	SizeBytes   int64            `bson:"sizeBytes"`
	PublishedAt int64            `bson:"publishedAt"`
	Seeders     int              `bson:"seeders"`
	Leechers    int              `bson:"leechers"`
	DownloadURI string           `bson:"downloadUri"`
	Freeleech   bool             `bson:"freeleech"`
	InfoHash    string           `bson:"infoHash,omitempty"`
	Quality     parsedQualityDoc `bson:"quality"`
}

// releaseSelectionDoc is an append-only audit record: one document per
// RecordSelection call, never updated.
type releaseSelectionDoc struct {
	ID        string              `bson:"_id"`
	MovieID   string              `bson:"movieId"`
	Candidate releaseCandidateDoc `bson:"candidate"`
	Rationale rationaleDoc        `bson:"rationale"`
	CreatedAt int64               `bson:"createdAt"`
}

// ReleaseStore is a Mongo-backed domain.ReleaseRepository: an
// append-only record of every winning candidate plus the rationale that
// selected it, for audit and the history view.
type ReleaseStore struct {
	collection *mongo.Collection
}

func NewReleaseStore(client *mongo.Client, dbName, collectionName string) *ReleaseStore {
	return &ReleaseStore{collection: client.Database(dbName).Collection(collectionName)}
}

func (s *ReleaseStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "movieId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (s *ReleaseStore) RecordSelection(ctx context.Context, movieID string, candidate domain.ReleaseCandidate, rationale domain.Rationale) error {
	doc := releaseSelectionDoc{
		ID:        candidate.Fingerprint() + ":" + movieID,
		MovieID:   movieID,
		Candidate: toReleaseCandidateDoc(candidate),
		Rationale: toRationaleDoc(rationale),
		CreatedAt: time.Now().Unix(),
	}
	_, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil // already recorded, RecordSelection is idempotent under (movie, fingerprint)
		}
		return domain.Classify(domain.Transient, err)
	}
	return nil
}

func toReleaseCandidateDoc(c domain.ReleaseCandidate) releaseCandidateDoc {
	return releaseCandidateDoc{
		IndexerID:   c.IndexerID,
		Title:       c.Title,
		SizeBytes:   c.SizeBytes,
		PublishedAt: c.PublishedAt.Unix(),
		Seeders:     c.Seeders,
		Leechers:    c.Leechers,
		DownloadURI: c.DownloadURI,
		Freeleech:   c.Freeleech,
		InfoHash:    c.InfoHash,
		Quality:     toQualityDoc(c.Quality),
	}
}

func toRationaleDoc(r domain.Rationale) rationaleDoc {
	candidates := make([]candidateRationaleDoc, 0, len(r.Candidates))
	for _, cr := range r.Candidates {
		candidates = append(candidates, candidateRationaleDoc{
			Fingerprint:    cr.Fingerprint,
			Tier:           string(cr.Tier),
			AllowedScore:   cr.AllowedScore,
			PreferredBonus: cr.PreferredBonus,
			FormatScore:    cr.FormatScore,
			ReputationAdj:  cr.ReputationAdj,
			SizeFitness:    cr.SizeFitness,
			FreeleechBonus: cr.FreeleechBonus,
			ProperBonus:    cr.ProperBonus,
			TotalScore:     cr.TotalScore,
			Disqualified:   cr.Disqualified,
			Disqualifier:   cr.Disqualifier,
		})
	}
	return rationaleDoc{
		Candidates:     candidates,
		WinningFPrint:  r.WinningFPrint,
		WinningReasons: r.WinningReasons,
		NoSelectReason: r.NoSelectReason,
	}
}
