package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/idelchi/dirscan/internal/scanner"
)

// locator maps a user-supplied path to a scanner root and scanner paths back
// to display paths: relative to the working directory when the target is
// inside it, absolute otherwise.
type locator struct {
	abs        string
	cwd        string
	outsideCwd bool
}

func newLocator(target string) (*locator, error) {
	// filepath.Clean handles both separators and converts to native format
	target = filepath.Clean(target)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	relToTarget, err := filepath.Rel(cwd, abs)
	outsideCwd := err != nil || strings.HasPrefix(relToTarget, "..")

	return &locator{abs: abs, cwd: cwd, outsideCwd: outsideCwd}, nil
}

// base returns the target's name within its parent directory.
func (l *locator) base() string {
	return filepath.Base(l.abs)
}

// display converts a path relative to the target into a display path.
func (l *locator) display(rel string) string {
	full := filepath.Join(l.abs, rel)
	displayPath := full

	if !l.outsideCwd {
		if relPath, err := filepath.Rel(l.cwd, full); err == nil {
			displayPath = relPath
		}
	}

	return strings.TrimPrefix(filepath.ToSlash(displayPath), "./")
}

// displayFile returns a copy of f with a display path, or nil.
func (l *locator) displayFile(f *scanner.FileSize) *scanner.FileSize {
	if f == nil {
		return nil
	}

	return &scanner.FileSize{Path: l.display(f.Path), Size: f.Size}
}

// options returns the scanner options derived from the loaded config.
func (a *app) options() []scanner.Option {
	return []scanner.Option{
		scanner.WithLogger(a.log),
		scanner.WithExcludes(a.cfg.Exclude...),
		scanner.WithParallel(a.cfg.Parallel),
	}
}

// scanFile returns a scanner rooted at the target's parent directory.
func (a *app) scanFile(loc *locator) *scanner.Scanner {
	return scanner.NewOS(filepath.Dir(loc.abs), a.options()...)
}

// progressEnabled reports whether a progress spinner should be drawn on stderr.
func (a *app) progressEnabled() bool {
	if a.cfg.Output == "json" || a.cfg.Debug || a.cfg.NoProgress {
		return false
	}

	f, ok := a.stderr.(*os.File)

	return ok && isatty.IsTerminal(f.Fd())
}

// newSpinner creates an indeterminate progress spinner writing to w.
func newSpinner(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Scanning…"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// run executes query on a scanner rooted at the target directory, showing
// progress while it runs if enabled.
func (a *app) run(loc *locator, query func(*scanner.Scanner) error) error {
	opts := a.options()

	var bar *progressbar.ProgressBar

	if a.progressEnabled() {
		bar = newSpinner(a.stderr)

		opts = append(opts, scanner.WithProgress(func(files, bytes int64) {
			bar.Describe(fmt.Sprintf("Scanning… %d files, %s",
				files, humanize.IBytes(uint64(bytes)))) //nolint:gosec // Bytes is always positive
			_ = bar.Set64(bytes)
		}, a.cfg.ProgressInterval))
	}

	err := query(scanner.NewOS(loc.abs, opts...))

	// Clear the status line
	if bar != nil {
		_ = bar.Finish()
	}

	return err
}

// scanError prefixes err with its kind and the path the user supplied.
func scanError(target string, err error) error {
	kind := "scanning"

	switch {
	case errors.Is(err, scanner.ErrNotFound):
		kind = "not found"
	case errors.Is(err, scanner.ErrPermissionDenied):
		kind = "permission denied"
	case errors.Is(err, scanner.ErrNotADirectory):
		kind = "not a directory"
	case errors.Is(err, scanner.ErrNotAFile):
		kind = "not a regular file"
	}

	return fmt.Errorf("%s: %q: %w", kind, target, err)
}
