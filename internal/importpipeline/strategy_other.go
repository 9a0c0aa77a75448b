//go:build !linux

package importpipeline

import (
	"errors"
	"os"
)

func sameDevice(source, destDir string) bool {
	return false
}

func reflinkSupported(srcInfo os.FileInfo) bool {
	return false
}

func doReflink(source, destination string) error {
	return errors.New("reflink not supported on this platform")
}
