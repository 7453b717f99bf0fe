// Package cli provides the command-line interface for vistagrid.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for vistagrid.
func NewRootCmd(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vistagrid",
		Short: "Multi-viewport coordination for imaging workstations",
		Long: `vistagrid manages the viewport grid of an imaging workstation:
layout transitions with state preservation, cross-viewport
synchronization, and resource cleanup.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
	}

	rootCmd.AddCommand(NewDemoCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}
