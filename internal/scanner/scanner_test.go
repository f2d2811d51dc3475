package scanner

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree creates root and the given files (path -> size) on a memory filesystem.
func buildTree(t *testing.T, root string, files map[string]int, dirs ...string) billy.Filesystem {
	t.Helper()

	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll(root, 0o755))

	for _, dir := range dirs {
		require.NoError(t, fsys.MkdirAll(fsys.Join(root, dir), 0o755))
	}

	for name, size := range files {
		require.NoError(t, util.WriteFile(fsys, fsys.Join(root, name), bytes.Repeat([]byte("x"), size), 0o644))
	}

	return fsys
}

// buildOSTree creates the given files (path -> size) below a temporary directory.
func buildOSTree(t *testing.T, files map[string]int, dirs ...string) string {
	t.Helper()

	root := t.TempDir()

	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	for name, size := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
	}

	return root
}

func TestSingleFileDirectory(t *testing.T) {
	fsys := buildTree(t, "A", map[string]int{"a.txt": 10})
	s := New(fsys)
	ctx := context.Background()

	total, err := s.TotalSize(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)

	count, err := s.CountFiles(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	depth, err := s.Depth(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	smallest, err := s.SmallestFile(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, &FileSize{Path: fsys.Join("A", "a.txt"), Size: 10}, smallest)

	largest, err := s.LargestFile(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, &FileSize{Path: fsys.Join("A", "a.txt"), Size: 10}, largest)
}

func TestNestedDirectory(t *testing.T) {
	fsys := buildTree(t, "B", map[string]int{"x.txt": 5, "C/y.txt": 7})
	s := New(fsys)
	ctx := context.Background()

	total, err := s.TotalSize(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	count, err := s.CountFiles(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	depth, err := s.Depth(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	smallest, err := s.SmallestFile(ctx, "B")
	require.NoError(t, err)
	require.NotNil(t, smallest)
	assert.Equal(t, fsys.Join("B", "x.txt"), smallest.Path)
	assert.Equal(t, int64(5), smallest.Size)

	largest, err := s.LargestFile(ctx, "B")
	require.NoError(t, err)
	require.NotNil(t, largest)
	assert.Equal(t, fsys.Join("B", "C", "y.txt"), largest.Path)
	assert.Equal(t, int64(7), largest.Size)
}

func TestEmptyDirectory(t *testing.T) {
	fsys := buildTree(t, "E", nil)
	s := New(fsys)
	ctx := context.Background()

	total, err := s.TotalSize(ctx, "E")
	require.NoError(t, err)
	assert.Zero(t, total)

	count, err := s.CountFiles(ctx, "E")
	require.NoError(t, err)
	assert.Zero(t, count)

	depth, err := s.Depth(ctx, "E")
	require.NoError(t, err)
	assert.Zero(t, depth)

	smallest, err := s.SmallestFile(ctx, "E")
	require.NoError(t, err)
	assert.Nil(t, smallest)

	largest, err := s.LargestFile(ctx, "E")
	require.NoError(t, err)
	assert.Nil(t, largest)

	matches, err := s.FilesOfSize(ctx, "E", 0)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestFilesOfSizeAcrossLevels(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{
		"top.txt":         3,
		"other.txt":       4,
		"sub/deep/a.txt":  3,
		"sub/unmatched.b": 2,
	})
	s := New(fsys)

	matches, err := s.FilesOfSize(context.Background(), "root", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{
		fsys.Join("root", "sub", "deep", "a.txt"),
		fsys.Join("root", "top.txt"),
	}, matches)

	none, err := s.FilesOfSize(context.Background(), "root", 100)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTraversalOrderIsDepthFirstLexical(t *testing.T) {
	// "b" sorts between "a.txt" and "c.txt"; its subtree must be visited
	// before "c.txt" even though "c.txt" lives in the parent directory.
	fsys := buildTree(t, "root", map[string]int{
		"c.txt":   1,
		"a.txt":   1,
		"b/z.txt": 1,
		"b/a/y":   1,
	})
	s := New(fsys)

	matches, err := s.FilesOfSize(context.Background(), "root", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{
		fsys.Join("root", "a.txt"),
		fsys.Join("root", "b", "a", "y"),
		fsys.Join("root", "b", "z.txt"),
		fsys.Join("root", "c.txt"),
	}, matches)
}

func TestTieBreakKeepsFirstInTraversalOrder(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{
		"b.txt":   4,
		"a/x.txt": 4,
		"c.txt":   4,
	})
	s := New(fsys)
	ctx := context.Background()

	smallest, err := s.SmallestFile(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, fsys.Join("root", "a", "x.txt"), smallest.Path)

	largest, err := s.LargestFile(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, fsys.Join("root", "a", "x.txt"), largest.Path)
}

func TestZeroByteFileIsSmallest(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{
		"empty":     0,
		"d/ten.bin": 10,
		"five.bin":  5,
	})
	s := New(fsys)

	smallest, err := s.SmallestFile(context.Background(), "root")
	require.NoError(t, err)
	require.NotNil(t, smallest)
	assert.Equal(t, fsys.Join("root", "empty"), smallest.Path)
	assert.Zero(t, smallest.Size)

	matches, err := s.FilesOfSize(context.Background(), "root", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{fsys.Join("root", "empty")}, matches)
}

func TestOnlyZeroByteFiles(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{"a": 0, "b": 0})
	s := New(fsys)

	largest, err := s.LargestFile(context.Background(), "root")
	require.NoError(t, err)
	require.NotNil(t, largest)
	assert.Equal(t, fsys.Join("root", "a"), largest.Path)
	assert.Zero(t, largest.Size)
}

func TestDepthTakesDeepestBranch(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{"a/f": 1}, "a/b/c", "d", "e/f/g/h")
	s := New(fsys)

	depth, err := s.Depth(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, 4, depth)
}

func TestEmptySubdirectoriesCountTowardsDepth(t *testing.T) {
	fsys := buildTree(t, "root", nil, "only")
	s := New(fsys)

	depth, err := s.Depth(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	count, err := s.CountFiles(context.Background(), "root")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAggregatesAgreeWithPerFileQueries(t *testing.T) {
	files := map[string]int{
		"a.go":          12,
		"b/c.go":        7,
		"b/d/e.md":      7,
		"b/d/f/g.txt":   0,
		"h/i.bin":       1024,
		"h/j/k/l/m.bin": 3,
	}
	fsys := buildTree(t, "root", files)
	s := New(fsys)
	ctx := context.Background()

	var sum int64

	sizes := map[int64]struct{}{}

	for name := range files {
		size, err := s.FileSize(ctx, fsys.Join("root", filepath.FromSlash(name)))
		require.NoError(t, err)

		sum += size
		sizes[size] = struct{}{}
	}

	total, err := s.TotalSize(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, sum, total)

	count, err := s.CountFiles(ctx, "root")
	require.NoError(t, err)

	var all []string

	for size := range sizes {
		matches, err := s.FilesOfSize(ctx, "root", size)
		require.NoError(t, err)

		all = append(all, matches...)
	}

	assert.Len(t, all, count)

	smallest, err := s.SmallestFile(ctx, "root")
	require.NoError(t, err)

	largest, err := s.LargestFile(ctx, "root")
	require.NoError(t, err)

	for size := range sizes {
		assert.LessOrEqual(t, smallest.Size, size)
		assert.GreaterOrEqual(t, largest.Size, size)
	}
}

func TestSummarize(t *testing.T) {
	fsys := buildTree(t, "B", map[string]int{"x.txt": 5, "C/y.txt": 7})
	s := New(fsys)

	sum, err := s.Summarize(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, &Summary{
		Path:       "B",
		TotalBytes: 12,
		FileCount:  2,
		Depth:      1,
		Smallest:   &FileSize{Path: fsys.Join("B", "x.txt"), Size: 5},
		Largest:    &FileSize{Path: fsys.Join("B", "C", "y.txt"), Size: 7},
	}, sum)
}

func TestFileSizeAndIsDirectory(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{"f.txt": 9}, "sub")
	s := New(fsys)
	ctx := context.Background()

	size, err := s.FileSize(ctx, fsys.Join("root", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)

	_, err = s.FileSize(ctx, fsys.Join("root", "sub"))
	require.ErrorIs(t, err, ErrNotAFile)

	isDir, err := s.IsDirectory(ctx, fsys.Join("root", "sub"))
	require.NoError(t, err)
	assert.True(t, isDir)

	isDir, err = s.IsDirectory(ctx, fsys.Join("root", "f.txt"))
	require.NoError(t, err)
	assert.False(t, isDir)

	_, err = s.IsDirectory(ctx, fsys.Join("root", "missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecursiveQueriesRejectFiles(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{"f.txt": 9})
	s := New(fsys)
	ctx := context.Background()
	file := fsys.Join("root", "f.txt")

	_, err := s.TotalSize(ctx, file)
	require.ErrorIs(t, err, ErrNotADirectory)

	_, err = s.CountFiles(ctx, file)
	require.ErrorIs(t, err, ErrNotADirectory)

	_, err = s.Depth(ctx, file)
	require.ErrorIs(t, err, ErrNotADirectory)

	_, err = s.SmallestFile(ctx, file)
	require.ErrorIs(t, err, ErrNotADirectory)

	_, err = s.FilesOfSize(ctx, file, 9)
	require.ErrorIs(t, err, ErrNotADirectory)
}

func TestMissingDirectory(t *testing.T) {
	s := New(buildTree(t, "root", nil))

	_, err := s.TotalSize(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)

	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "stat", pe.Op)
	assert.Equal(t, "nope", pe.Path)
}

func TestExcludes(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{
		"keep.txt":           1,
		"drop.log":           2,
		"sub/drop.log":       3,
		"node_modules/pkg/x": 100,
	})
	s := New(fsys, WithExcludes("**/*.log", "node_modules"))
	ctx := context.Background()

	total, err := s.TotalSize(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	depth, err := s.Depth(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	largest, err := s.LargestFile(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, fsys.Join("root", "keep.txt"), largest.Path)
}

func TestInvalidExcludePattern(t *testing.T) {
	s := New(buildTree(t, "root", map[string]int{"a": 1}), WithExcludes("[unclosed"))

	_, err := s.TotalSize(context.Background(), "root")
	require.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	s := New(buildTree(t, "root", map[string]int{"a": 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CountFiles(ctx, "root")
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.FileSize(ctx, "root/a")
	require.ErrorIs(t, err, context.Canceled)
}

func TestOSScannerMatchesParallel(t *testing.T) {
	files := map[string]int{
		"a.txt":       10,
		"b/c.txt":     20,
		"b/d/e/f.txt": 30,
		"g/h.txt":     0,
	}
	root := buildOSTree(t, files, "empty/deeper/still/deeper")
	ctx := context.Background()

	sequential := NewOS(root)
	parallel := NewOS(root, WithParallel(true))

	for _, s := range []*Scanner{sequential, parallel} {
		total, err := s.TotalSize(ctx, ".")
		require.NoError(t, err)
		assert.Equal(t, int64(60), total)

		count, err := s.CountFiles(ctx, ".")
		require.NoError(t, err)
		assert.Equal(t, 4, count)

		depth, err := s.Depth(ctx, ".")
		require.NoError(t, err)
		assert.Equal(t, 4, depth)
	}

	matches, err := parallel.FilesOfSize(ctx, ".", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("b", "c.txt")}, matches)
}

func TestParallelExcludes(t *testing.T) {
	root := buildOSTree(t, map[string]int{
		"keep.txt":     1,
		"skip/big.bin": 1000,
		"x/drop.log":   5,
	})
	s := NewOS(root, WithParallel(true), WithExcludes("skip", "**/*.log"))

	total, err := s.TotalSize(context.Background(), ".")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestOSSkipsSymlinks(t *testing.T) {
	root := buildOSTree(t, map[string]int{"real.txt": 4})

	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if err := os.Symlink(root, filepath.Join(root, "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	for _, s := range []*Scanner{NewOS(root), NewOS(root, WithParallel(true))} {
		count, err := s.CountFiles(context.Background(), ".")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
}

func TestPermissionDeniedAborts(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	root := buildOSTree(t, map[string]int{"ok.txt": 1, "locked/secret.txt": 2})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	for _, s := range []*Scanner{NewOS(root), NewOS(root, WithParallel(true))} {
		_, err := s.TotalSize(context.Background(), ".")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPermissionDenied), "got %v", err)
		assert.True(t, errors.Is(err, fs.ErrPermission), "got %v", err)
	}
}

// deniedFS fails ReadDir on one directory with a permission error.
type deniedFS struct {
	billy.Filesystem
	denied string
}

func (d deniedFS) ReadDir(path string) ([]fs.FileInfo, error) {
	if path == d.denied {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
	}

	return d.Filesystem.ReadDir(path)
}

func TestPermissionDeniedSubdirectory(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{"a.txt": 1, "locked/secret.txt": 2, "z.txt": 3})
	s := New(deniedFS{Filesystem: fsys, denied: fsys.Join("root", "locked")})

	_, err := s.TotalSize(context.Background(), "root")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, err, fs.ErrPermission)

	var perr *PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, fsys.Join("root", "locked"), perr.Path)

	_, err = s.SmallestFile(context.Background(), "root")
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = s.FilesOfSize(context.Background(), "root", 1)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestProgressReporter(t *testing.T) {
	tl := newTally()
	tl.addFile("a", 3)
	tl.addFile("b", 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type update struct{ files, bytes int64 }

	updates := make(chan update, 1)

	stop := startProgressReporter(ctx, tl, func(files, bytes int64) {
		select {
		case updates <- update{files, bytes}:
		default:
		}
	}, time.Millisecond)
	defer stop()

	select {
	case u := <-updates:
		assert.Equal(t, update{2, 7}, u)
	case <-time.After(5 * time.Second):
		t.Fatal("no progress update received")
	}
}

func TestProgressHookDuringWalk(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{"a": 1, "b/c": 2})

	s := New(fsys, WithProgress(func(_, _ int64) {}, time.Millisecond))

	total, err := s.TotalSize(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestNoProgressAfterReturn(t *testing.T) {
	fsys := buildTree(t, "root", map[string]int{"a": 1, "b/c": 2, "b/d/e": 3})

	var returned atomic.Bool

	var late atomic.Int64

	hook := func(_, _ int64) {
		time.Sleep(2 * time.Millisecond)

		if returned.Load() {
			late.Add(1)
		}
	}

	s := New(fsys, WithProgress(hook, time.Microsecond))

	for range 50 {
		returned.Store(false)

		_, err := s.TotalSize(context.Background(), "root")
		require.NoError(t, err)

		returned.Store(true)
	}

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, late.Load())
}
