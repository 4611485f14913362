package assets

import (
	"fmt"

	"github.com/zjrosen/grae/internal/gen"
	"github.com/zjrosen/grae/internal/log"
	"github.com/zjrosen/grae/internal/resource"
)

// Config is a Gen document loaded through the registry.
type Config struct {
	Tree *gen.Tree
}

func (c *Config) Load(l resource.Lookup, path string) error {
	tree, err := gen.LoadFile(l.FS(), path)
	if err != nil {
		return err
	}
	l.Logger().Debug(log.CatGen, "parsed config", "path", path, "keys", tree.Len())
	c.Tree = tree
	return nil
}

// LoadDefault leaves an empty tree, so every getter returns its fallback.
func (c *Config) LoadDefault(resource.Lookup) {
	c.Tree = gen.New()
}

func (c *Config) String() string {
	return fmt.Sprintf("config with %d top-level keys", c.Tree.Len())
}
