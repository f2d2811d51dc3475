package scanner

import (
	"sync"
)

// FileSize represents a single file path and size.
type FileSize struct {
	// Path is the file path.
	Path string `json:"path"`
	// Size is the size in bytes.
	Size int64 `json:"size"`
}

// Summary holds every aggregate of a directory tree, computed in one walk.
type Summary struct {
	// Path is the directory that was scanned.
	Path string `json:"path"`
	// TotalBytes is the cumulative size of all regular files.
	TotalBytes int64 `json:"total_bytes"`
	// FileCount is the number of regular files.
	FileCount int64 `json:"file_count"`
	// Depth is the maximum subdirectory nesting depth.
	Depth int `json:"depth"`
	// Smallest is the smallest file, nil if the tree has no files.
	Smallest *FileSize `json:"smallest"`
	// Largest is the largest file, nil if the tree has no files.
	Largest *FileSize `json:"largest"`
}

// tally aggregates walk results. The parallel walker calls into it from
// multiple goroutines, and the progress reporter reads it concurrently.
type tally struct {
	mu sync.Mutex

	files    int64
	bytes    int64
	depth    int
	smallest *FileSize
	largest  *FileSize

	matchSize bool
	target    int64
	matches   []string
}

func newTally() *tally {
	return &tally{}
}

// newMatchTally creates a tally that also records files of exactly size bytes.
func newMatchTally(size int64) *tally {
	return &tally{
		matchSize: true,
		target:    size,
		matches:   make([]string, 0),
	}
}

// addFile folds a regular file into the aggregate.
// Ties keep the first file seen, so with the ordered walker the earliest
// file in traversal order wins.
func (t *tally) addFile(path string, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.files++
	t.bytes += size

	if t.smallest == nil || size < t.smallest.Size {
		t.smallest = &FileSize{Path: path, Size: size}
	}

	if t.largest == nil || size > t.largest.Size {
		t.largest = &FileSize{Path: path, Size: size}
	}

	if t.matchSize && size == t.target {
		t.matches = append(t.matches, path)
	}
}

// addDir records a directory found at the given depth below the root.
func (t *tally) addDir(depth int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if depth > t.depth {
		t.depth = depth
	}
}

// counts returns the running file and byte counters.
func (t *tally) counts() (int64, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.files, t.bytes
}

// summary produces the final Summary for root.
func (t *tally) summary(root string) *Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	return &Summary{
		Path:       root,
		TotalBytes: t.bytes,
		FileCount:  t.files,
		Depth:      t.depth,
		Smallest:   t.smallest,
		Largest:    t.largest,
	}
}
