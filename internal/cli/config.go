package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vistagrid/vistagrid/internal/infrastructure/config"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect vistagrid configuration",
		Long:  `Print the configuration file path or the JSON schema describing it.`,
		RunE:  showConfig,
	}

	cmd.Flags().Bool("schema", false, "Print the JSON schema for the config file")

	return cmd
}

func showConfig(cmd *cobra.Command, _ []string) error {
	printSchema, _ := cmd.Flags().GetBool("schema")
	if printSchema {
		raw, err := config.GenerateSchema()
		if err != nil {
			return fmt.Errorf("failed to generate config schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}

	dir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, "config.toml"))
	return nil
}
