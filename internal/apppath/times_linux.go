//go:build linux

package apppath

import (
	"os"
	"syscall"
	"time"
)

// fileTimes extracts the closest thing to a creation timestamp Linux offers
// (the inode change time) alongside the modification time.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	created = modified
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		created = time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
	}
	return created, modified
}
