package importpipeline

import (
	"os"
	"path/filepath"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/naming"
)

// Plan computes the canonical destination for a payload's primary video
// file and its sidecars under libraryRoot, using template. It refuses
// to collide with an existing healthy file that isn't the movie's own
// current best file (a reimport of the same movie is expected to
// replace its own prior file, never someone else's).
func Plan(libraryRoot, template string, movie domain.Movie, analysis AnalyzeResult) (domain.ImportWorkItem, error) {
	values := naming.ValuesFor(movie, analysis.Quality)
	relPath := naming.Render(template, values)
	destDir := filepath.Join(libraryRoot, filepath.Dir(relPath))
	destBase := filepath.Base(relPath)
	destVideo := filepath.Join(destDir, destBase+filepath.Ext(analysis.VideoFile))

	if err := checkCollision(destVideo, movie); err != nil {
		return domain.ImportWorkItem{}, err
	}

	moves := []domain.FileMove{{Source: analysis.VideoFile, Destination: destVideo, SizeBytes: analysis.SizeBytes}}
	for _, sidecar := range analysis.Sidecars {
		dest := filepath.Join(destDir, destBase+filepath.Ext(sidecar))
		moves = append(moves, domain.FileMove{Source: sidecar, Destination: dest})
	}

	return domain.ImportWorkItem{
		PayloadPath: analysis.VideoFile,
		Movie:       movie,
		Moves:       moves,
	}, nil
}

func checkCollision(dest string, movie domain.Movie) error {
	if movie.BestFile != nil && movie.BestFile.Path == dest {
		return nil // replacing the movie's own current file is expected
	}
	if _, err := os.Stat(dest); err == nil {
		return domain.Classify(domain.Conflict, domain.ErrTemplateCollides)
	}
	return nil
}
