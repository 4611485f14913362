package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/zjrosen/grae/internal/gen"
	"github.com/zjrosen/grae/internal/log"
)

var (
	fmtWrite bool
	fmtCheck bool
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Print a Gen file in canonical form",
	Long: `Parse a Gen file and print it in canonical form: one entry per line,
nested blocks indented by four spaces, comments dropped.

Examples:
  # Print the canonical form
  grae fmt assets/windows/main.gen

  # Rewrite the file in place
  grae fmt --write assets/windows/main.gen

  # Fail when the file is not canonical (for CI)
  grae fmt --check assets/windows/main.gen`,
	Args: cobra.ExactArgs(1),
	RunE: runFmt,
}

func init() {
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "w", false, "rewrite the file in place")
	fmtCmd.Flags().BoolVar(&fmtCheck, "check", false, "exit non-zero when the file is not canonical")
	rootCmd.AddCommand(fmtCmd)
}

func runFmt(cmd *cobra.Command, args []string) error {
	path := args[0]
	original, err := afero.ReadFile(appFs, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	tree, err := gen.Parse(string(original))
	if err != nil {
		var pe *gen.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return err
	}
	canonical := tree.String()

	switch {
	case fmtCheck:
		if canonical != string(original) {
			return fmt.Errorf("%s is not formatted", path)
		}
		return nil
	case fmtWrite:
		if canonical == string(original) {
			return nil
		}
		if err := afero.WriteFile(appFs, path, []byte(canonical), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Info(log.CatCLI, "formatted", "path", path)
		return nil
	default:
		_, err := fmt.Fprint(cmd.OutOrStdout(), canonical)
		return err
	}
}
