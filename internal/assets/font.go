package assets

import (
	"fmt"

	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/zjrosen/grae/internal/log"
	"github.com/zjrosen/grae/internal/resource"
)

// Font is a parsed TrueType or OpenType font.
type Font struct {
	Name string
	Font *opentype.Font
}

func (f *Font) Load(l resource.Lookup, path string) error {
	data, err := afero.ReadFile(l.FS(), path)
	if err != nil {
		return err
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing font %s: %w", path, err)
	}
	f.Font = parsed
	f.Name = fontName(parsed, path)
	return nil
}

// LoadDefault uses the embedded Go Regular font.
func (f *Font) LoadDefault(l resource.Lookup) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		l.Logger().ErrorErr(log.CatAssets, "failed to parse embedded font", err)
		return
	}
	f.Font = parsed
	f.Name = fontName(parsed, "goregular")
}

// Face returns a face at the given size in points, at 72 DPI.
func (f *Font) Face(size float64) (font.Face, error) {
	if f.Font == nil {
		return nil, fmt.Errorf("font %q has no glyph data", f.Name)
	}
	return opentype.NewFace(f.Font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Glyphs returns the number of glyphs in the font.
func (f *Font) Glyphs() int {
	if f.Font == nil {
		return 0
	}
	return f.Font.NumGlyphs()
}

func (f *Font) String() string {
	return fmt.Sprintf("font %q (%d glyphs)", f.Name, f.Glyphs())
}

func fontName(f *opentype.Font, fallback string) string {
	var buf sfnt.Buffer
	name, err := f.Name(&buf, sfnt.NameIDFull)
	if err != nil || name == "" {
		return fallback
	}
	return name
}
