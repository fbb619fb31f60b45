package integrity

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

const snapshotLayout = "20060102T150405Z"

var reSnapshot = regexp.MustCompile(`^jobs-(\d{8}T\d{6}Z)(?:-(\d+))?\.db$`)

// Snapshot is a backup file found in the backup directory.
type Snapshot struct {
	Path      string
	Name      string
	SizeBytes int64
	TakenAt   time.Time
	seq       int
}

// SnapshotName returns the file name for a snapshot taken at t. seq > 0
// disambiguates snapshots taken within the same second.
func SnapshotName(t time.Time, seq int) string {
	stamp := t.UTC().Format(snapshotLayout)
	if seq > 0 {
		return fmt.Sprintf("jobs-%s-%d.db", stamp, seq)
	}
	return "jobs-" + stamp + ".db"
}

// ListSnapshots returns the snapshots in dir, newest first. Files that do not
// follow the snapshot naming scheme are ignored.
func ListSnapshots(dir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}
	var out []Snapshot
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := reSnapshot.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		taken, err := time.Parse(snapshotLayout, m[1])
		if err != nil {
			continue
		}
		seq := 0
		if m[2] != "" {
			seq, _ = strconv.Atoi(m[2])
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{
			Path:      filepath.Join(dir, entry.Name()),
			Name:      entry.Name(),
			SizeBytes: info.Size(),
			TakenAt:   taken,
			seq:       seq,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TakenAt.Equal(out[j].TakenAt) {
			return out[i].TakenAt.After(out[j].TakenAt)
		}
		return out[i].seq > out[j].seq
	})
	return out, nil
}

func nextSnapshotPath(dir string, t time.Time) string {
	for seq := 0; ; seq++ {
		path := filepath.Join(dir, SnapshotName(t, seq))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
