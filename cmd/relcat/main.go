// Command relcat declares relational catalogs in SQLite, loads batches of
// rows into them and runs ranking, join, grouping and staleness queries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/relcat/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
