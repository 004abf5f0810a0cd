//go:build darwin

package apppath

import (
	"os"
	"syscall"
	"time"
)

// fileTimes extracts the true birth time macOS records alongside the
// modification time.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	created = modified
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		created = time.Unix(int64(st.Birthtimespec.Sec), int64(st.Birthtimespec.Nsec))
	}
	return created, modified
}
