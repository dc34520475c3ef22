package commands

import (
	"path/filepath"

	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter rollcall.yml",
	Long: `Create rollcall.yml in the directory of --config with the default settings.

Use --force to overwrite an existing rollcall.yml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	// Note: Cannot use -f shorthand because it conflicts with global --config flag
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing rollcall.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := filepath.Dir(configPath)

	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			return printer.Error("already initialized", err.Error(), nil)
		}
	}

	created, err := scaffold.Initialize(dir, forceInit)
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	scaffold.PrintSuccess(created)
	return nil
}
