package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/zjrosen/grae/internal/gen"
)

var diffCmd = &cobra.Command{
	Use:   "diff <a> <b>",
	Short: "Compare two Gen files",
	Long: `Compare two Gen files after canonicalizing both. Files whose trees are equal
(same keys, values and subtrees, in any order) are reported as identical;
otherwise a line diff of the canonical forms is printed and the command
exits non-zero.

Example:
  grae diff assets/windows/main.gen assets/windows/debug.gen`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, err := gen.LoadFile(appFs, args[0])
	if err != nil {
		return err
	}
	b, err := gen.LoadFile(appFs, args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.Equal(b) {
		_, err := fmt.Fprintln(out, subtleStyle.Render("no differences"))
		return err
	}

	fmt.Fprintln(out, deletedStyle.Render("--- "+args[0]))
	fmt.Fprintln(out, addedStyle.Render("+++ "+args[1]))
	writeLineDiff(out, a.String(), b.String())
	return fmt.Errorf("%s and %s differ", args[0], args[1])
}

// writeLineDiff prints a whole-line diff of two texts.
func writeLineDiff(w io.Writer, oldText, newText string) {
	dmp := diffmatchpatch.New()
	oldChars, newChars, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lines)

	for _, d := range diffs {
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				fmt.Fprintln(w, "  "+line)
			case diffmatchpatch.DiffDelete:
				fmt.Fprintln(w, deletedStyle.Render("- "+line))
			case diffmatchpatch.DiffInsert:
				fmt.Fprintln(w, addedStyle.Render("+ "+line))
			}
		}
	}
}
