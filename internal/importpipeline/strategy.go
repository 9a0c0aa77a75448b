package importpipeline

import (
	"os"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// ChooseStrategy picks the cheapest file-placement mechanism that can
// satisfy a move: hardlink when source and destination share a device,
// else a copy-on-write reflink where the platform supports it, else a
// plain copy. Move is never chosen automatically — it is reserved for
// callers that explicitly want the source deleted after placement
// (e.g. a torrent client configured to seed nothing after completion).
func ChooseStrategy(source, destDir string) (domain.ImportStrategy, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return "", domain.Classify(domain.Disk, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", domain.Classify(domain.Disk, err)
	}

	if sameDevice(source, destDir) {
		return domain.StrategyHardlink, nil
	}
	if reflinkSupported(srcInfo) {
		return domain.StrategyReflink, nil
	}
	return domain.StrategyCopy, nil
}
