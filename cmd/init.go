package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/grae/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config to .grae/config.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := appFs.Stat(localConfigPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", localConfigPath)
		}
		if err := config.WriteDefaultConfig(appFs, localConfigPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote "+localConfigPath)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}
