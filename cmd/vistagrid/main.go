package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vistagrid/vistagrid/internal/cli"
	"github.com/vistagrid/vistagrid/internal/logging"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx := logging.WithContext(context.Background(), logging.NewFromEnv())

	rootCmd := cli.NewRootCmd(version, commit, buildDate)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
