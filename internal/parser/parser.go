// Package parser turns a release title string into a
// domain.ParsedQuality descriptor. Its lexical grammar is deliberately
// permissive: scene release titles vary wildly in token order and
// separator choice, so every pattern tolerates dots, underscores,
// hyphens, and spaces interchangeably.
package parser

import (
	"regexp"
	"strings"

	"github.com/reelwatch/orchestrator/internal/domain"
)

var (
	resolutionPattern = regexp.MustCompile(`(?i)\b(480p|576p|720p|1080p|1080i|2160p|4320p|4k)\b`)
	sourcePattern     = regexp.MustCompile(`(?i)\b(bdremux|bluray[ ._-]?remux|remux|bluray|bdrip|brrip|web[ ._-]?dl|webdl|webrip|web|hdtv|dvdrip|dvd|hdrip|cam|telesync|ts)\b`)
	videoCodecPattern = regexp.MustCompile(`(?i)\b(x264|x265|h\.?264|h\.?265|hevc|avc|av1|vp9|xvid)\b`)
	audioCodecPattern = regexp.MustCompile(`(?i)\b(truehd|dts-?hd|dts-?x|dts|eac3|ddp|ac3|aac|flac|opus|mp3)\b`)
	audioChanPattern  = regexp.MustCompile(`\b([0-9][.][0-2])\b`)
	hdr10PlusPattern  = regexp.MustCompile(`(?i)hdr10\+`)
	hdr10Pattern      = regexp.MustCompile(`(?i)\bhdr10\b`)
	hdrPattern        = regexp.MustCompile(`(?i)\bhdr\b`)
	dolbyVisionPatt   = regexp.MustCompile(`(?i)\b(dolby[ ._-]?vision|dovi|\bdv\b)`)
	properPattern     = regexp.MustCompile(`(?i)\bproper\b`)
	repackPattern     = regexp.MustCompile(`(?i)\brepack\b`)
	editionPattern    = regexp.MustCompile(`(?i)\b(extended|unrated|directors[ ._-]?cut|theatrical|ultimate|remastered|imax)\b`)
	groupPattern      = regexp.MustCompile(`-([A-Za-z0-9]+)$`)
	separatorPattern  = regexp.MustCompile(`[._]+`)
)

// Parse extracts a domain.ParsedQuality from a release title. It never
// fails outright: unmatched fields are left at their zero value
// (Resolution/Source default to "unknown"), since an indexer title that
// doesn't declare a field is still a usable (if lower-scoring) release.
func Parse(title string) domain.ParsedQuality {
	normalized := separatorPattern.ReplaceAllString(title, " ")

	q := domain.ParsedQuality{
		Resolution: resolution(normalized),
		Source:     source(normalized),
		VideoCodec: firstMatchLower(videoCodecPattern, normalized),
		AudioCodec: firstMatchLower(audioCodecPattern, normalized),
	}
	if m := audioChanPattern.FindString(normalized); m != "" {
		q.AudioChannel = m
	}
	q.HDR = hdrFlags(normalized)
	if m := editionPattern.FindString(normalized); m != "" {
		q.Edition = strings.ToLower(m)
	}
	q.ProperTier = properTier(normalized)
	q.Group = sceneGroup(title)
	return q
}

func resolution(title string) domain.Resolution {
	m := strings.ToLower(firstMatch(resolutionPattern, title))
	switch m {
	case "480p", "576p":
		return domain.ResolutionSD
	case "720p":
		return domain.Resolution720p
	case "1080p", "1080i":
		return domain.Resolution1080p
	case "2160p", "4320p", "4k":
		return domain.Resolution2160p
	default:
		return domain.ResolutionUnknow
	}
}

func source(title string) domain.Source {
	m := strings.ToLower(firstMatch(sourcePattern, title))
	m = strings.Join(strings.Fields(strings.ReplaceAll(m, "-", " ")), "")
	switch {
	case strings.Contains(m, "remux"):
		return domain.SourceBlurayRemux
	case strings.Contains(m, "bluray") || strings.Contains(m, "bdrip") || strings.Contains(m, "brrip"):
		return domain.SourceBluray
	case strings.Contains(m, "webdl") || m == "web":
		return domain.SourceWEBDL
	case strings.Contains(m, "webrip"):
		return domain.SourceWEBRip
	case strings.Contains(m, "hdtv"):
		return domain.SourceHDTV
	case strings.Contains(m, "dvd"):
		return domain.SourceDVD
	case strings.Contains(m, "cam") || strings.Contains(m, "telesync") || m == "ts":
		return domain.SourceCAM
	default:
		return domain.SourceUnknown
	}
}

func hdrFlags(title string) []domain.HDRFormat {
	var flags []domain.HDRFormat
	if hdr10PlusPattern.MatchString(title) {
		flags = append(flags, domain.HDR10P)
	} else if hdr10Pattern.MatchString(title) || hdrPattern.MatchString(title) {
		flags = append(flags, domain.HDR10)
	}
	if dolbyVisionPatt.MatchString(title) {
		flags = append(flags, domain.DV)
	}
	return flags
}

func properTier(title string) domain.ProperTier {
	switch {
	case repackPattern.MatchString(title):
		return domain.ProperTierRepack
	case properPattern.MatchString(title):
		return domain.ProperTierProper
	default:
		return domain.ProperTierOriginal
	}
}

// sceneGroup extracts the trailing "-GROUP" token, the scene
// convention for release group attribution, from the raw (unnormalized)
// title after stripping a video file extension. Only an alphanumeric tag
// matches: a group name containing dots or other punctuation yields "".
func sceneGroup(title string) string {
	trimmed := strings.TrimSpace(title)
	trimmed = strings.TrimSuffix(trimmed, filepathExt(trimmed))
	m := groupPattern.FindStringSubmatch(trimmed)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

// filepathExt returns a trailing file extension (".mkv" etc.) if title
// looks like a filename, else "".
func filepathExt(title string) string {
	idx := strings.LastIndex(title, ".")
	if idx < 0 || idx < len(title)-6 {
		return ""
	}
	ext := strings.ToLower(title[idx:])
	switch ext {
	case ".mkv", ".mp4", ".avi", ".m4v", ".mov", ".wmv", ".ts", ".m2ts", ".webm":
		return title[idx:]
	default:
		return ""
	}
}

func firstMatch(re *regexp.Regexp, s string) string {
	return re.FindString(s)
}

func firstMatchLower(re *regexp.Regexp, s string) string {
	return strings.ToLower(re.FindString(s))
}
