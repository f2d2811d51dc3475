// Command dirscan inspects directory trees: total size, file count, nesting
// depth, smallest and largest file, and files of an exact size.
package main

import (
	"fmt"
	"os"

	"github.com/idelchi/dirscan/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.New(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dirscan: %v\n", err)
		os.Exit(1)
	}
}
