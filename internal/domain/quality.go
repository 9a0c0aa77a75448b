package domain

// Resolution is the coarse video resolution class of a release.
type Resolution string

const (
	ResolutionSD     Resolution = "sd"
	Resolution720p   Resolution = "720p"
	Resolution1080p  Resolution = "1080p"
	Resolution2160p  Resolution = "2160p"
	ResolutionUnknow Resolution = "unknown"
)

// Source is the acquisition path a release claims (cam through remux).
type Source string

const (
	SourceCAM         Source = "cam"
	SourceTS          Source = "ts"
	SourceDVD         Source = "dvd"
	SourceHDTV        Source = "hdtv"
	SourceWEBRip      Source = "webrip"
	SourceWEBDL       Source = "webdl"
	SourceBlurayRemux Source = "bluray_remux"
	SourceBluray      Source = "bluray"
	SourceUnknown     Source = "unknown"
)

// HDRFormat enumerates the HDR flavors a release may declare.
type HDRFormat string

const (
	HDR10  HDRFormat = "hdr10"
	HDR10P HDRFormat = "hdr10plus"
	DV     HDRFormat = "dolby_vision"
)

// ProperTier is the repack/proper escalation level: 0 is an original
// release, 1 a PROPER, 2 a REPACK, and so on for further re-releases.
type ProperTier int

const (
	ProperTierOriginal ProperTier = 0
	ProperTierProper   ProperTier = 1
	ProperTierRepack   ProperTier = 2
)

// Tier is the coarse quality class combining resolution and source
// (e.g. BluRay-1080p) that a Quality Profile's allow/prefer rules and
// cutoff operate on.
type Tier string

// ParsedQuality is the structured projection of a release title that
// the decision engine scores against a Quality Profile. Producing this
// from raw title text is delegated to internal/parser; its lexical
// grammar is not specified beyond these fields.
type ParsedQuality struct {
	Resolution   Resolution
	Source       Source
	VideoCodec   string
	AudioCodec   string
	AudioChannel string
	HDR          []HDRFormat
	Edition      string
	ProperTier   ProperTier
	Group        string // scene group, "" if none detected
	Languages    []string
	Subtitles    []string
}

// TierKey derives the coarse Tier this parsed quality belongs to,
// combining source and resolution ("BluRay-1080p"). Profiles key their
// allow/prefer rules on this value.
func (p ParsedQuality) TierKey() Tier {
	return Tier(string(p.Source) + "-" + string(p.Resolution))
}

// HasHDR reports whether any of the given flags is present.
func (p ParsedQuality) HasHDR(flags ...HDRFormat) bool {
	for _, want := range flags {
		for _, have := range p.HDR {
			if have == want {
				return true
			}
		}
	}
	return false
}
