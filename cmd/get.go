package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/grae/internal/gen"
)

var getCmd = &cobra.Command{
	Use:   "get <file> <key>",
	Short: "Print one value from a Gen file",
	Long: `Print the value at a dotted key path. A nested entry prints its subtree
in Gen form; a tag prints nothing. A missing key is an error.

Examples:
  grae get assets/windows/main.gen Window.title
  grae get assets/windows/main.gen Window`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	path, key := args[0], args[1]
	tree, err := gen.LoadFile(appFs, path)
	if err != nil {
		return err
	}
	v, ok := tree.Lookup(key)
	if !ok {
		return fmt.Errorf("%s: no key %q", path, key)
	}

	out := cmd.OutOrStdout()
	if v.Value != "" || v.Children == nil {
		if _, err := fmt.Fprintln(out, v.Value); err != nil {
			return err
		}
	}
	if v.Children != nil {
		_, err = fmt.Fprint(out, v.Children.String())
	}
	return err
}
