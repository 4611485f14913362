package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/grae/internal/assets"
	"github.com/zjrosen/grae/internal/config"
	"github.com/zjrosen/grae/internal/log"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the built-in resource types and their directories",
	Long: `List the built-in resource types with the directory their ids resolve
under, relative to the resource root. Directories set in the config's
"types" section are marked as overrides.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render("root: "+cfg.RootDir))

		t := newTable("TYPE", "DIR", "")
		for _, k := range assets.Kinds() {
			dir, note := k.Dir, ""
			if override, ok := cfg.Types[k.Name]; ok {
				dir, note = override, "(override)"
			}
			t.Row(k.Name, dir, note)
		}
		fmt.Fprintln(out, t.Render())
		return nil
	},
}

var typesSetCmd = &cobra.Command{
	Use:   "set <type> <dir>",
	Short: "Override the directory of a resource type in the config file",
	Long: `Override the directory of a built-in resource type. The change is written
to the config file in use (or .grae/config.yaml), keeping its comments.

Example:
  grae types set texture images`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, dir := args[0], args[1]
		if _, ok := assets.KindByName(name); !ok {
			return fmt.Errorf("unknown resource type %q", name)
		}
		path := configPath()
		if err := config.SetTypeDir(appFs, path, cfg.Types, name, dir); err != nil {
			return err
		}
		cfg.Types[name] = dir
		log.Info(log.CatConfig, "type directory set", "type", name, "dir", dir, "config", path)
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", name, dir, path)
		return nil
	},
}

func init() {
	typesCmd.AddCommand(typesSetCmd)
	rootCmd.AddCommand(typesCmd)
}
