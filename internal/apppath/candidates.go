package apppath

import (
	"os"
	"path/filepath"
	"time"
)

// ManifestName marks a directory as an application root. Directories without
// it never qualify as candidates, whatever their name or timestamps.
const ManifestName = "package.json"

// Candidate is a directory that may back a session. Candidates are computed
// fresh for every resolution and never cached; the filesystem is the source
// of truth.
type Candidate struct {
	Path        string
	Name        string
	CreatedAt   time.Time
	ModifiedAt  time.Time
	HasManifest bool
}

// referenceTime is the timestamp the time-proximity heuristic compares
// against: the earlier of creation and modification, so a later edit to an
// old app cannot make it look freshly generated.
func (c Candidate) referenceTime() time.Time {
	if c.ModifiedAt.Before(c.CreatedAt) {
		return c.ModifiedAt
	}
	return c.CreatedAt
}

// HasManifest reports whether dir contains the dependency manifest.
func HasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestName))
	return err == nil && !info.IsDir()
}

// listCandidates reads the immediate child directories of root. A missing or
// unreadable root yields no candidates rather than an error; resolution
// degrades to the default path.
func listCandidates(root string) []Candidate {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var out []Candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, entry.Name())
		created, modified := fileTimes(info)
		out = append(out, Candidate{
			Path:        path,
			Name:        entry.Name(),
			CreatedAt:   created,
			ModifiedAt:  modified,
			HasManifest: HasManifest(path),
		})
	}
	return out
}
