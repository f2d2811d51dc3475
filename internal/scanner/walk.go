package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// DefaultProgressInterval is the default interval for progress updates.
const DefaultProgressInterval = 500 * time.Millisecond

// node is a pending item on the ordered walker's work-list.
type node struct {
	path  string
	rel   string
	depth int
	// info is nil for the walk root.
	info fs.FileInfo
}

// calculateDepth returns the depth of a path relative to the root.
func calculateDepth(path, root string) int {
	relPath := strings.TrimPrefix(path, root)

	relPath = strings.TrimPrefix(relPath, string(filepath.Separator))
	if relPath == "" {
		return 0
	}

	return strings.Count(relPath, string(filepath.Separator)) + 1
}

// joinRel extends a slash-separated path relative to the walk root.
func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "/" + name
}

// excluded reports whether rel matches any exclusion pattern.
func (s *Scanner) excluded(rel string) (string, bool, error) {
	for _, pattern := range s.excludes {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return pattern, false, err
		}

		if ok {
			return pattern, true, nil
		}
	}

	return "", false, nil
}

// walkOrdered visits the tree below root depth-first, children in ascending
// name order, folding every regular file into t. It keeps an explicit
// work-list instead of recursing.
//
//nolint:gocognit // Single loop handles every entry kind.
func (s *Scanner) walkOrdered(ctx context.Context, root string, t *tally) error {
	stack := []node{{path: root}}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.info != nil && !n.info.IsDir() {
			t.addFile(n.path, n.info.Size())

			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		t.addDir(n.depth)
		s.log.Debug().Str("path", n.path).Int("depth", n.depth).Msg("entering directory")

		infos, err := s.fs.ReadDir(n.path)
		if err != nil {
			return newPathError("readdir", n.path, err)
		}

		slices.SortFunc(infos, func(a, b fs.FileInfo) int {
			return strings.Compare(a.Name(), b.Name())
		})

		children := make([]node, 0, len(infos))

		for _, info := range infos {
			rel := joinRel(n.rel, info.Name())
			path := s.fs.Join(n.path, info.Name())

			pattern, skip, err := s.excluded(rel)
			if err != nil {
				return &PathError{Op: "match", Path: pattern, Err: err}
			}

			if skip {
				s.log.Debug().Str("path", path).Str("pattern", pattern).Msg("excluding")

				continue
			}

			if !info.IsDir() && !info.Mode().IsRegular() {
				s.log.Debug().Str("path", path).Stringer("mode", info.Mode()).Msg("skipping non-regular entry")

				continue
			}

			children = append(children, node{path: path, rel: rel, depth: n.depth + 1, info: info})
		}

		// Push in reverse so the lexically first child is popped next.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return nil
}

// walkParallel folds the tree below root into t using fastwalk. Callbacks run
// concurrently and in no particular order, so only order-independent
// aggregates may be read from t afterwards.
func (s *Scanner) walkParallel(ctx context.Context, root string, t *tally) error {
	base := filepath.Join(s.osRoot, root)

	conf := &fastwalk.Config{
		Follow: false, // Don't follow symlinks
	}

	//nolint:varnamelen // d is standard for DirEntry
	return fastwalk.Walk(conf, base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return newPathError("walk", path, err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel := ""
		if path != base {
			r, err := filepath.Rel(base, path)
			if err != nil {
				return newPathError("walk", path, err)
			}

			rel = filepath.ToSlash(r)
		}

		if rel != "" {
			pattern, skip, err := s.excluded(rel)
			if err != nil {
				return &PathError{Op: "match", Path: pattern, Err: err}
			}

			if skip {
				s.log.Debug().Str("path", path).Str("pattern", pattern).Msg("excluding")

				if d.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}
		}

		if d.IsDir() {
			t.addDir(calculateDepth(path, base))

			return nil
		}

		if !d.Type().IsRegular() {
			s.log.Debug().Str("path", path).Stringer("mode", d.Type()).Msg("skipping non-regular entry")

			return nil
		}

		info, err := d.Info()
		if err != nil {
			return newPathError("stat", path, err)
		}

		t.addFile(s.fs.Join(root, filepath.FromSlash(rel)), info.Size())

		return nil
	})
}

// startProgressReporter invokes hook(files, bytes) on each tick until the
// returned stop func is called. No hook call is running once stop returns.
func startProgressReporter(ctx context.Context, t *tally, hook func(int64, int64), interval time.Duration) func() {
	if hook == nil {
		return func() {}
	}

	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}

				hook(t.counts())
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
