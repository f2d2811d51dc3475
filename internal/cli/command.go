package cli

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/idelchi/dirscan/internal/config"
	"github.com/idelchi/dirscan/internal/integration"
	"github.com/idelchi/dirscan/internal/scanner"
)

// CLI represents the command-line interface.
type CLI struct {
	version string
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version}
}

// Execute runs the CLI with the process arguments.
func (c CLI) Execute() error {
	return newRootCommand(c.version, os.Stdout, os.Stderr).ExecuteContext(context.Background())
}

// app carries the state shared by all subcommands of one invocation.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
}

//nolint:funlen // Command tree is declared in one place.
func newRootCommand(version string, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "dirscan",
		Short: "Inspect directory trees: sizes, counts and depth",
		Long: heredoc.Doc(`
			dirscan recursively inspects a directory tree.

			Directories are walked depth-first, visiting the entries of each
			directory in lexical order. Only regular files are counted;
			symlinks are never followed.

			Settings are read from flags, DIRSCAN_* environment variables
			and an optional .dirscan.yaml in the working directory.
		`),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.log = newLogger(cfg.Debug, a.stderr)

			return nil
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default .dirscan.yaml in the working directory)")
	flags.StringP("output", "o", "table", "Output format: json or table")
	flags.StringSliceP("exclude", "e", []string{}, "Glob patterns to exclude, relative to the scanned directory (e.g. '**/*.log')")
	flags.Bool("parallel", false, "Walk in parallel for total, count and depth")
	flags.Bool("debug", false, "Enable debug output")
	flags.Bool("no-progress", false, "Disable the progress indicator")
	flags.Duration("progress-interval", scanner.DefaultProgressInterval, "Progress update interval")

	root.AddCommand(
		&cobra.Command{
			Use:   "size <file>",
			Short: "Print the size of a file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				loc, err := newLocator(args[0])
				if err != nil {
					return err
				}

				size, err := a.scanFile(loc).FileSize(cmd.Context(), loc.base())
				if err != nil {
					return scanError(args[0], err)
				}

				return a.print(SizeReport{Path: loc.display("."), Size: size})
			},
		},
		&cobra.Command{
			Use:   "is-dir <path>",
			Short: "Report whether a path is a directory",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				loc, err := newLocator(args[0])
				if err != nil {
					return err
				}

				isDir, err := a.scanFile(loc).IsDirectory(cmd.Context(), loc.base())
				if err != nil {
					return scanError(args[0], err)
				}

				return a.print(DirReport{Path: loc.display("."), IsDir: isDir})
			},
		},
		a.dirCommand("total [dir]", "Print the total size of all files below a directory",
			func(ctx context.Context, s *scanner.Scanner, loc *locator) (any, error) {
				total, err := s.TotalSize(ctx, ".")

				return TotalReport{Path: loc.display("."), TotalBytes: total}, err
			}),
		a.dirCommand("count [dir]", "Print the number of files below a directory",
			func(ctx context.Context, s *scanner.Scanner, loc *locator) (any, error) {
				count, err := s.CountFiles(ctx, ".")

				return CountReport{Path: loc.display("."), FileCount: count}, err
			}),
		a.dirCommand("depth [dir]", "Print the maximum subdirectory nesting depth",
			func(ctx context.Context, s *scanner.Scanner, loc *locator) (any, error) {
				depth, err := s.Depth(ctx, ".")

				return DepthReport{Path: loc.display("."), Depth: depth}, err
			}),
		a.dirCommand("smallest [dir]", "Print the smallest file below a directory",
			func(ctx context.Context, s *scanner.Scanner, loc *locator) (any, error) {
				f, err := s.SmallestFile(ctx, ".")

				return loc.displayFile(f), err
			}),
		a.dirCommand("largest [dir]", "Print the largest file below a directory",
			func(ctx context.Context, s *scanner.Scanner, loc *locator) (any, error) {
				f, err := s.LargestFile(ctx, ".")

				return loc.displayFile(f), err
			}),
		a.dirCommand("summary [dir]", "Print every statistic of a directory in one pass",
			func(ctx context.Context, s *scanner.Scanner, loc *locator) (any, error) {
				sum, err := s.Summarize(ctx, ".")
				if err != nil {
					return nil, err
				}

				sum.Path = loc.display(".")
				sum.Smallest = loc.displayFile(sum.Smallest)
				sum.Largest = loc.displayFile(sum.Largest)

				return sum, nil
			}),
		a.filesOfSizeCommand(),
		&cobra.Command{
			Use:   "init",
			Short: "Output init script for shell usage",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				rendered, err := integration.Render(cmd.Root().Name())
				if err != nil {
					return fmt.Errorf("rendering integration script: %w", err)
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)

				return err
			},
		},
	)

	return root
}

// dirCommand builds a subcommand that runs query against an optional
// directory argument (default ".") and prints its report.
func (a *app) dirCommand(
	use, short string,
	query func(context.Context, *scanner.Scanner, *locator) (any, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}

			loc, err := newLocator(target)
			if err != nil {
				return err
			}

			var report any

			err = a.run(loc, func(s *scanner.Scanner) error {
				var qerr error
				report, qerr = query(cmd.Context(), s, loc)

				return qerr
			})
			if err != nil {
				return scanError(target, err)
			}

			return a.print(report)
		},
	}
}

func (a *app) filesOfSizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "files-of-size <size> [dir]",
		Short: "List files whose size is exactly <size>",
		Long: heredoc.Doc(`
			List every file below a directory whose size equals <size>, in traversal order.

			<size> accepts plain byte counts (3) and units (1KB = 1000 bytes, 1KiB = 1024 bytes).
			Fractions are allowed with a unit as long as they come to whole bytes (1.5KB).
		`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[0])
			if err != nil {
				return fmt.Errorf("invalid size: %w", err)
			}

			target := "."
			if len(args) > 1 {
				target = args[1]
			}

			loc, err := newLocator(target)
			if err != nil {
				return err
			}

			var matches []string

			err = a.run(loc, func(s *scanner.Scanner) error {
				var qerr error
				matches, qerr = s.FilesOfSize(cmd.Context(), ".", size)

				return qerr
			})
			if err != nil {
				return scanError(target, err)
			}

			files := make([]string, 0, len(matches))
			for _, m := range matches {
				files = append(files, loc.display(m))
			}

			return a.print(MatchReport{Path: loc.display("."), Size: size, Files: files})
		},
	}
}

// parseSize parses a byte count with an optional humanize unit. Values that
// do not come to a whole number of bytes are rejected instead of truncated.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)

	split := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if split < 0 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number of bytes", s)
		}

		return n, nil
	}

	num, unit := s[:split], strings.TrimSpace(s[split:])

	mult, err := humanize.ParseBytes("1" + unit)
	if err != nil {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}

	bytes, ok := new(big.Rat).SetString(num)
	if !ok || num == "" {
		return 0, fmt.Errorf("%q is not a number", num)
	}

	bytes.Mul(bytes, new(big.Rat).SetUint64(mult))
	if !bytes.IsInt() || !bytes.Num().IsInt64() {
		return 0, fmt.Errorf("%q is not a whole number of bytes", s)
	}

	return bytes.Num().Int64(), nil
}

// newLogger returns a console debug logger on w, or a disabled logger.
func newLogger(debug bool, w io.Writer) zerolog.Logger {
	if !debug {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()
}
