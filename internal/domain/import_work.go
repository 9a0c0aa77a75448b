package domain

// ImportStrategy is the file-placement mechanism chosen for an import.
// Reflink shares blocks copy-on-write (Btrfs/XFS FICLONE); Hardlink
// shares an inode on the same filesystem; Copy and Move are the
// fallbacks when neither applies.
type ImportStrategy string

const (
	StrategyHardlink ImportStrategy = "hardlink"
	StrategyReflink  ImportStrategy = "reflink"
	StrategyCopy     ImportStrategy = "copy"
	StrategyMove     ImportStrategy = "move"
)

// FileMove is a single planned (source -> destination) file operation
// within an import work item.
type FileMove struct {
	Source      string
	Destination string
	SizeBytes   int64
}

// ImportWorkItem is the unit of work the import pipeline executes.
type ImportWorkItem struct {
	PayloadPath string
	Movie       Movie
	Moves       []FileMove
	Strategy    ImportStrategy
	Validated   bool
}
