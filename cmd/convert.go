package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/grae/internal/gen"
)

var convertTo string

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Export a Gen file as YAML or JSON",
	Long: `Export a Gen file as YAML or JSON. Tags become null, values stay strings,
and a nested entry with an inline value keeps it under "_value".

Examples:
  grae convert assets/windows/main.gen --to yaml
  grae convert assets/windows/main.gen --to json | jq .Window`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	tree, err := gen.LoadFile(appFs, args[0])
	if err != nil {
		return err
	}

	var out []byte
	switch convertTo {
	case "yaml", "yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		out = buf.Bytes()
	case "json":
		raw, err := tree.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		buf.WriteByte('\n')
		out = buf.Bytes()
	default:
		return fmt.Errorf("unsupported format %q (want yaml or json)", convertTo)
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}
