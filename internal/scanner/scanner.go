package scanner

import (
	"context"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
)

// Scanner answers size, count and depth queries about directory trees.
// It holds only immutable configuration; every query walks the tree afresh.
type Scanner struct {
	fs       billy.Filesystem
	osRoot   string
	log      zerolog.Logger
	excludes []string
	parallel bool

	progressHook     func(int64, int64)
	progressInterval time.Duration
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for debug output.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scanner) {
		s.log = log
	}
}

// WithExcludes sets doublestar patterns matched against slash-separated paths
// relative to the queried directory. A matching directory prunes its subtree.
func WithExcludes(patterns ...string) Option {
	return func(s *Scanner) {
		s.excludes = append(s.excludes, patterns...)
	}
}

// WithProgress reports running (files, bytes) counters to hook every interval
// while a walk is in progress.
func WithProgress(hook func(files, bytes int64), interval time.Duration) Option {
	return func(s *Scanner) {
		s.progressHook = hook
		s.progressInterval = interval
	}
}

// WithParallel lets order-independent queries (TotalSize, CountFiles, Depth)
// walk with fastwalk. It only takes effect on scanners created by NewOS.
func WithParallel(enabled bool) Option {
	return func(s *Scanner) {
		s.parallel = enabled
	}
}

// New creates a Scanner over fsys.
func New(fsys billy.Filesystem, opts ...Option) *Scanner {
	s := &Scanner{
		fs:  fsys,
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewOS creates a Scanner over the host filesystem rooted at root.
// Query paths are interpreted relative to root.
func NewOS(root string, opts ...Option) *Scanner {
	s := New(osfs.New(root), opts...)
	s.osRoot = root

	return s
}

// FileSize returns the byte length of the regular file at path.
func (s *Scanner) FileSize(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		return 0, newPathError("stat", path, err)
	}

	if !info.Mode().IsRegular() {
		return 0, &PathError{Op: "size", Path: path, Kind: ErrNotAFile, Err: ErrNotAFile}
	}

	return info.Size(), nil
}

// IsDirectory reports whether path is a directory.
func (s *Scanner) IsDirectory(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		return false, newPathError("stat", path, err)
	}

	return info.IsDir(), nil
}

// TotalSize returns the cumulative size of every regular file below dir.
func (s *Scanner) TotalSize(ctx context.Context, dir string) (int64, error) {
	t := newTally()
	if err := s.collect(ctx, dir, t, s.parallel); err != nil {
		return 0, err
	}

	_, bytes := t.counts()

	return bytes, nil
}

// CountFiles returns the number of regular files below dir.
// Directories are not counted.
func (s *Scanner) CountFiles(ctx context.Context, dir string) (int, error) {
	t := newTally()
	if err := s.collect(ctx, dir, t, s.parallel); err != nil {
		return 0, err
	}

	files, _ := t.counts()

	return int(files), nil
}

// Depth returns the maximum nesting depth of subdirectories below dir.
// A directory without subdirectories has depth 0.
func (s *Scanner) Depth(ctx context.Context, dir string) (int, error) {
	t := newTally()
	if err := s.collect(ctx, dir, t, s.parallel); err != nil {
		return 0, err
	}

	return t.summary(dir).Depth, nil
}

// SmallestFile returns the smallest regular file below dir, or nil if there
// are none. On ties the first file in traversal order wins.
func (s *Scanner) SmallestFile(ctx context.Context, dir string) (*FileSize, error) {
	sum, err := s.Summarize(ctx, dir)
	if err != nil {
		return nil, err
	}

	return sum.Smallest, nil
}

// LargestFile returns the largest regular file below dir, or nil if there
// are none. On ties the first file in traversal order wins.
func (s *Scanner) LargestFile(ctx context.Context, dir string) (*FileSize, error) {
	sum, err := s.Summarize(ctx, dir)
	if err != nil {
		return nil, err
	}

	return sum.Largest, nil
}

// FilesOfSize returns every regular file below dir whose size is exactly
// size bytes, in traversal order. The result is empty, never nil, when
// nothing matches.
func (s *Scanner) FilesOfSize(ctx context.Context, dir string, size int64) ([]string, error) {
	t := newMatchTally(size)
	if err := s.collect(ctx, dir, t, false); err != nil {
		return nil, err
	}

	return t.matches, nil
}

// Summarize computes every aggregate for dir in a single ordered walk.
func (s *Scanner) Summarize(ctx context.Context, dir string) (*Summary, error) {
	t := newTally()
	if err := s.collect(ctx, dir, t, false); err != nil {
		return nil, err
	}

	return t.summary(dir), nil
}

// collect validates dir and walks it into t. Parallel walks are only used
// when requested and the scanner is backed by the host filesystem.
func (s *Scanner) collect(ctx context.Context, dir string, t *tally, parallel bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := s.fs.Stat(dir)
	if err != nil {
		return newPathError("stat", dir, err)
	}

	if !info.IsDir() {
		return &PathError{Op: "scan", Path: dir, Kind: ErrNotADirectory, Err: ErrNotADirectory}
	}

	stop := startProgressReporter(ctx, t, s.progressHook, s.progressInterval)
	defer stop()

	start := time.Now()

	if parallel && s.osRoot != "" {
		err = s.walkParallel(ctx, dir, t)
	} else {
		err = s.walkOrdered(ctx, dir, t)
	}

	if err != nil {
		return err
	}

	files, bytes := t.counts()
	s.log.Debug().
		Str("path", dir).
		Bool("parallel", parallel && s.osRoot != "").
		Int64("files", files).
		Int64("bytes", bytes).
		Dur("elapsed", time.Since(start)).
		Msg("walk complete")

	return nil
}
