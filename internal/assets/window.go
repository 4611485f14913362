package assets

import (
	"errors"
	"fmt"

	"github.com/zjrosen/grae/internal/resource"
)

// Window defaults.
const (
	DefaultWindowTitle  = "grae"
	DefaultWindowWidth  = 800
	DefaultWindowHeight = 600
)

var errNoWindowBlock = errors.New("missing Window block")

// Window holds window properties read from the Window block of a Gen file:
//
//	Window{
//	    title:Main Window
//	    width:800
//	    height:600
//	    resizable
//	}
type Window struct {
	Title        string
	Width        int
	Height       int
	Resizable    bool
	Fullscreen   bool
	NoDecoration bool
	VSync        bool
}

// Load reads the Gen file at path through the registry's Config cache, so a
// window and a config naming the same file share one parse.
func (w *Window) Load(l resource.Lookup, path string) error {
	cfg := resource.GetFromRoot[Config](l, path)
	if resource.IsDefault(l, cfg) {
		return fmt.Errorf("no window config at %s", path)
	}

	block := cfg.Tree.SubValues("Window")
	if block == nil {
		return errNoWindowBlock
	}

	w.Title = block.GetString("title", DefaultWindowTitle)
	w.Width = block.GetInt("width", DefaultWindowWidth)
	w.Height = block.GetInt("height", DefaultWindowHeight)
	w.Resizable = block.GetBool("resizable", false)
	w.Fullscreen = block.GetBool("fullscreen", false)
	w.NoDecoration = block.GetBool("nodecoration", false)
	w.VSync = block.GetBool("vsync", true)

	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", w.Width, w.Height)
	}
	return nil
}

func (w *Window) LoadDefault(resource.Lookup) {
	*w = Window{
		Title:  DefaultWindowTitle,
		Width:  DefaultWindowWidth,
		Height: DefaultWindowHeight,
		VSync:  true,
	}
}

func (w *Window) String() string {
	return fmt.Sprintf("window %q %dx%d", w.Title, w.Width, w.Height)
}
