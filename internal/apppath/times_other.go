//go:build !linux && !darwin && !windows

package apppath

import (
	"os"
	"time"
)

// fileTimes falls back to the modification time on platforms without a
// portable creation timestamp.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	return modified, modified
}
