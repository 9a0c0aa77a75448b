// Package importpipeline moves a completed download's payload into the
// library at a canonical path, in stages: analyze, plan, choose
// strategy, execute, validate, record.
package importpipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/parser"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".m4v": {}, ".mov": {}, ".mkv": {}, ".avi": {},
	".wmv": {}, ".flv": {}, ".webm": {}, ".ts": {}, ".m2ts": {},
}

var subtitleExtensions = map[string]struct{}{
	".srt": {}, ".sub": {}, ".ass": {}, ".idx": {},
}

var sampleNamePattern = regexp.MustCompile(`(?i)\bsample\b`)

// AnalyzeResult is the output of scanning a completed payload directory.
type AnalyzeResult struct {
	VideoFile   string // absolute path to the primary video file
	SizeBytes   int64
	Sidecars    []string // subtitle files associated with the primary video
	Quality     domain.ParsedQuality
}

// Analyze enumerates the payload directory, picks the largest
// non-sample video file matching an allowed extension as primary, and
// collects subtitle sidecars alongside it. Technical metadata is
// approximated from the filename via internal/parser since no media
// container inspector is wired in; this is trusted over any metadata
// already attached to the originating release candidate, per the
// pipeline's "source of truth" rule. Files at or below sampleMaxBytes
// are treated as samples even without a name match.
func Analyze(payloadPath string, sampleMaxBytes int64) (AnalyzeResult, error) {
	info, err := os.Stat(payloadPath)
	if err != nil {
		return AnalyzeResult{}, domain.Classify(domain.Transient, domain.ErrPayloadMissing)
	}

	var files []string
	if info.IsDir() {
		err = filepath.Walk(payloadPath, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return AnalyzeResult{}, domain.Classify(domain.Disk, err)
		}
	} else {
		files = []string{payloadPath}
	}

	var primary string
	var primarySize int64
	for _, f := range files {
		if !isVideoFile(f) || isSampleFile(f) {
			continue
		}
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		if sampleMaxBytes > 0 && fi.Size() <= sampleMaxBytes {
			continue
		}
		if fi.Size() > primarySize {
			primary = f
			primarySize = fi.Size()
		}
	}
	if primary == "" {
		return AnalyzeResult{}, domain.Classify(domain.Validation, domain.ErrNoVideo)
	}

	var sidecars []string
	base := strings.TrimSuffix(filepath.Base(primary), filepath.Ext(primary))
	for _, f := range files {
		if f == primary {
			continue
		}
		if isSubtitleFile(f) && strings.HasPrefix(filepath.Base(f), base) {
			sidecars = append(sidecars, f)
		}
	}

	return AnalyzeResult{
		VideoFile: primary,
		SizeBytes: primarySize,
		Sidecars:  sidecars,
		Quality:   parser.Parse(filepath.Base(primary)),
	}, nil
}

func isVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func isSubtitleFile(path string) bool {
	_, ok := subtitleExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func isSampleFile(path string) bool {
	return sampleNamePattern.MatchString(filepath.Base(path))
}
