package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// SaveTypes replaces the types section of the config file at configPath.
// Comments and formatting in other sections are preserved.
func SaveTypes(fs afero.Fs, configPath string, types map[string]string) error {
	if err := ValidateTypes(types); err != nil {
		return err
	}

	data, err := afero.ReadFile(fs, configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	setKey(&doc, "types", buildTypesNode(types))

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(fs, configPath, buf.Bytes())
}

// SetTypeDir overrides the directory of one type, keeping the others.
func SetTypeDir(fs afero.Fs, configPath string, current map[string]string, name, dir string) error {
	types := make(map[string]string, len(current)+1)
	for k, v := range current {
		types[k] = v
	}
	types[name] = dir
	return SaveTypes(fs, configPath, types)
}

// setKey replaces key in the document's root mapping, creating the
// document or appending the key as needed.
func setKey(doc *yaml.Node, key string, value *yaml.Node) {
	if doc.Kind == 0 {
		*doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return
	}

	root := doc.Content[0]
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			// Keep the comments that trailed the old value.
			value.FootComment = root.Content[i+1].FootComment
			root.Content[i+1] = value
			return
		}
	}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

func buildTypesNode(types map[string]string) *yaml.Node {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	node := &yaml.Node{Kind: yaml.MappingNode}
	if len(names) == 0 {
		node.Style = yaml.FlowStyle
	}
	for _, name := range names {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: types[name]},
		)
	}
	return node
}

// writeAtomic writes data to a temp file next to path and renames it over.
func writeAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := afero.TempFile(fs, dir, ".grae.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = fs.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = fs.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := fs.Rename(tempPath, path); err != nil {
		_ = fs.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
