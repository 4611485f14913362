package assets

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/zjrosen/grae/internal/resource"
)

const checkerCell = 8

var (
	checkerMagenta = color.RGBA{R: 0xff, B: 0xff, A: 0xff}
	checkerBlack   = color.RGBA{A: 0xff}
)

// Texture is a decoded image. PNG, JPEG, GIF, BMP, TIFF and WebP files are
// recognized by content, not by extension.
type Texture struct {
	Image  *image.RGBA
	Format string
}

func (t *Texture) Load(l resource.Lookup, path string) error {
	f, err := l.FS().Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("decoding %s: empty image", path)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	t.Image = rgba
	t.Format = format
	return nil
}

// LoadDefault builds a 2x2 magenta and black checkerboard, the usual
// missing-texture marker.
func (t *Texture) LoadDefault(resource.Lookup) {
	size := 2 * checkerCell
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := checkerBlack
			if (x/checkerCell+y/checkerCell)%2 == 0 {
				c = checkerMagenta
			}
			img.SetRGBA(x, y, c)
		}
	}
	t.Image = img
	t.Format = "checker"
}

func (t *Texture) Width() int  { return t.Image.Bounds().Dx() }
func (t *Texture) Height() int { return t.Image.Bounds().Dy() }

func (t *Texture) String() string {
	return fmt.Sprintf("%s texture %dx%d", t.Format, t.Width(), t.Height())
}
