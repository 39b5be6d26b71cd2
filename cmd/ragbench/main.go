// Command ragbench benchmarks lexical retrieval strategies, optionally
// followed by rerankers, against a labelled query set and writes per-strategy
// evaluation reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/ragbench-go/cmd/ragbench/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
