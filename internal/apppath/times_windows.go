//go:build windows

package apppath

import (
	"os"
	"syscall"
	"time"
)

// fileTimes extracts the creation timestamp Windows records alongside the
// modification time.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	created = modified
	if st, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		created = time.Unix(0, st.CreationTime.Nanoseconds())
	}
	return created, modified
}
