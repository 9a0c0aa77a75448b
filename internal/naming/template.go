// Package naming renders a movie's canonical library path from a
// user-configurable template string, substituting placeholders from the
// movie record and its resolved quality.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// DefaultTemplate places each movie in its own directory, named with
// title, year, and the release's declared resolution/source.
const DefaultTemplate = "{title} ({year})/{title} ({year}) - {resolution} {source}{edition}"

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

var illegalPathChars = regexp.MustCompile(`[<>:"|?*]`)

// Values is the substitution set available to a template.
type Values struct {
	Title      string
	Year       int
	CatalogID  string
	Resolution domain.Resolution
	Source     domain.Source
	Edition    string
	Group      string
}

// ValuesFor builds a Values set from a movie and the parsed quality of
// the release being imported.
func ValuesFor(movie domain.Movie, quality domain.ParsedQuality) Values {
	return Values{
		Title:      movie.Title,
		Year:       movie.Year,
		CatalogID:  movie.CatalogID,
		Resolution: quality.Resolution,
		Source:     quality.Source,
		Edition:    quality.Edition,
		Group:      quality.Group,
	}
}

// Render expands template against values, then sanitizes every path
// segment for filesystem-illegal characters. The result is a relative
// path (directories joined with '/'); the caller joins it under the
// library root.
func Render(template string, values Values) string {
	if template == "" {
		template = DefaultTemplate
	}
	expanded := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		return substitute(name, values)
	})
	segments := strings.Split(expanded, "/")
	for i, seg := range segments {
		segments[i] = sanitizeSegment(seg)
	}
	return filepath.Join(segments...)
}

func substitute(name string, v Values) string {
	switch name {
	case "title":
		return v.Title
	case "year":
		if v.Year == 0 {
			return ""
		}
		return strconv.Itoa(v.Year)
	case "catalog_id":
		return v.CatalogID
	case "resolution":
		return string(v.Resolution)
	case "source":
		return string(v.Source)
	case "edition":
		if v.Edition == "" {
			return ""
		}
		return fmt.Sprintf(" [%s]", capitalizeWords(v.Edition))
	case "group":
		return v.Group
	default:
		return ""
	}
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func sanitizeSegment(seg string) string {
	seg = illegalPathChars.ReplaceAllString(seg, "")
	seg = strings.TrimRight(seg, " .")
	seg = strings.TrimSpace(seg)
	if seg == "" {
		seg = "_"
	}
	return seg
}
