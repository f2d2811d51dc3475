package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/idelchi/dirscan/internal/scanner"
)

const (
	// TabSpacing is the number of spaces between tabwriter columns.
	TabSpacing = 2
)

// SizeReport is the result of the size command.
type SizeReport struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// DirReport is the result of the is-dir command.
type DirReport struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

// TotalReport is the result of the total command.
type TotalReport struct {
	Path       string `json:"path"`
	TotalBytes int64  `json:"total_bytes"`
}

// CountReport is the result of the count command.
type CountReport struct {
	Path      string `json:"path"`
	FileCount int    `json:"file_count"`
}

// DepthReport is the result of the depth command.
type DepthReport struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

// MatchReport is the result of the files-of-size command.
type MatchReport struct {
	Path  string   `json:"path"`
	Size  int64    `json:"size"`
	Files []string `json:"files"`
}

// print writes report in the configured output format.
func (a *app) print(report any) error {
	if a.cfg.Output == "json" {
		return PrintJSON(report, a.stdout)
	}

	return PrintTable(report, a.stdout)
}

// PrintJSON outputs a report in JSON format.
func PrintJSON(report any, writer io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}

// formatBytes renders a byte count for humans, keeping the exact value.
func formatBytes(n int64) string {
	return fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(n)), n) //nolint:gosec // Sizes are never negative
}

// formatFile renders a file and its size, or "none".
func formatFile(f *scanner.FileSize) string {
	if f == nil {
		return "none"
	}

	return fmt.Sprintf("'%s'\t%s", f.Path, formatBytes(f.Size))
}

// PrintTable outputs a report in human-readable format.
func PrintTable(report any, writer io.Writer) error {
	var err error

	switch r := report.(type) {
	case SizeReport:
		_, err = fmt.Fprintln(writer, formatBytes(r.Size))
	case DirReport:
		_, err = fmt.Fprintln(writer, r.IsDir)
	case TotalReport:
		_, err = fmt.Fprintln(writer, formatBytes(r.TotalBytes))
	case CountReport:
		_, err = fmt.Fprintln(writer, r.FileCount)
	case DepthReport:
		_, err = fmt.Fprintln(writer, r.Depth)
	case MatchReport:
		for _, f := range r.Files {
			if _, err = fmt.Fprintln(writer, f); err != nil {
				break
			}
		}
	case *scanner.FileSize:
		w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)
		fmt.Fprintln(w, formatFile(r))

		err = w.Flush()
	case *scanner.Summary:
		err = printSummary(r, writer)
	default:
		err = fmt.Errorf("unsupported report type %T", report)
	}

	return err
}

// printSummary outputs a Summary as an aligned table.
func printSummary(sum *scanner.Summary, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	fmt.Fprintf(w, "Directory:\t'%s'\n", sum.Path)
	fmt.Fprintf(w, "Total files:\t%d\n", sum.FileCount)
	fmt.Fprintf(w, "Total size:\t%s\n", formatBytes(sum.TotalBytes))
	fmt.Fprintf(w, "Depth:\t%d\n", sum.Depth)

	if sum.Smallest == nil {
		fmt.Fprintln(w, "Smallest file:\tnone")
		fmt.Fprintln(w, "Largest file:\tnone")
	} else {
		fmt.Fprintf(w, "Smallest file:\t'%s' %s\n", sum.Smallest.Path, formatBytes(sum.Smallest.Size))
		fmt.Fprintf(w, "Largest file:\t'%s' %s\n", sum.Largest.Path, formatBytes(sum.Largest.Size))
	}

	return w.Flush()
}
