package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/zjrosen/grae/internal/log"
	"github.com/zjrosen/grae/internal/resource"
)

func newRegistry(t *testing.T, files map[string][]byte) (*resource.Registry, *log.Recorder) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, data := range files {
		require.NoError(t, afero.WriteFile(fs, path, data, 0644))
	}
	rec := log.NewRecorder()
	r := resource.New("assets", resource.WithFS(fs), resource.WithLogger(log.New(log.WithSink(rec))))
	require.NoError(t, Register(r, nil))
	t.Cleanup(func() { _ = r.Close() })
	return r, rec
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestConfig_LoadAndDefault(t *testing.T) {
	r, _ := newRegistry(t, map[string][]byte{
		"assets/config/game.gen": []byte("name:demo\nlimits{\n  fps:60\n}\n"),
		"assets/config/bad.gen":  []byte("broken{\n"),
	})

	cfg := resource.Get[Config](r, "game.gen")
	require.Equal(t, "demo", cfg.Tree.GetString("name", ""))
	require.Equal(t, 60, cfg.Tree.SubValues("limits").GetInt("fps", 0))

	bad := resource.Get[Config](r, "bad.gen")
	require.True(t, resource.IsDefault(r, bad))
	require.Equal(t, 0, bad.Tree.Len())
	require.Equal(t, 30, bad.Tree.GetInt("fps", 30))
}

func TestWindow_ReadsWindowBlock(t *testing.T) {
	r, _ := newRegistry(t, map[string][]byte{
		"assets/windows/main.gen": []byte("Window{\n    resizable\n    title:Main Window\n    width:1024\n    height:768\n    vsync:false\n}\n"),
	})

	w := resource.Get[Window](r, "main.gen")
	require.Equal(t, Window{Title: "Main Window", Width: 1024, Height: 768, Resizable: true}, *w)

	// The file was parsed once, into the config cache.
	require.True(t, resource.Exists[Config](r, "assets/windows/main.gen"))
}

func TestWindow_PartialBlockUsesDefaults(t *testing.T) {
	r, _ := newRegistry(t, map[string][]byte{
		"assets/windows/tiny.gen": []byte("Window{\n  fullscreen\n  nodecoration\n}\n"),
	})

	w := resource.Get[Window](r, "tiny.gen")
	require.False(t, resource.IsDefault(r, w))
	require.Equal(t, DefaultWindowTitle, w.Title)
	require.Equal(t, DefaultWindowWidth, w.Width)
	require.Equal(t, DefaultWindowHeight, w.Height)
	require.True(t, w.Fullscreen)
	require.True(t, w.NoDecoration)
	require.True(t, w.VSync)
}

func TestWindow_FallsBackToDefault(t *testing.T) {
	r, rec := newRegistry(t, map[string][]byte{
		"assets/windows/noblock.gen": []byte("Other{}\n"),
		"assets/windows/zero.gen":    []byte("Window{\n  width:0\n}\n"),
	})

	for _, id := range []string{"missing.gen", "noblock.gen", "zero.gen"} {
		w := resource.Get[Window](r, id)
		require.True(t, resource.IsDefault(r, w), id)
		require.Equal(t, "window \"grae\" 800x600", w.String())
	}
	// missing.gen fails in the config cache as well as the window cache.
	require.Equal(t, 4, rec.Count(log.LevelError, "failed to load resource"))
}

func TestTexture_DecodesPNGAndBMP(t *testing.T) {
	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, image.NewRGBA(image.Rect(0, 0, 3, 2))))

	r, _ := newRegistry(t, map[string][]byte{
		"assets/textures/a.png":  encodePNG(t, 4, 5),
		"assets/textures/b.bmp":  bmpBuf.Bytes(),
		"assets/textures/no.png": []byte("not an image"),
	})

	a := resource.Get[Texture](r, "a.png")
	require.Equal(t, "png", a.Format)
	require.Equal(t, 4, a.Width())
	require.Equal(t, 5, a.Height())
	require.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, a.Image.RGBAAt(1, 1))

	b := resource.Get[Texture](r, "b.bmp")
	require.Equal(t, "bmp", b.Format)
	require.Equal(t, 3, b.Width())

	bad := resource.Get[Texture](r, "no.png")
	require.True(t, resource.IsDefault(r, bad))
}

func TestTexture_DefaultIsChecker(t *testing.T) {
	r, _ := newRegistry(t, nil)

	tex := resource.Get[Texture](r, "")
	require.Equal(t, 16, tex.Width())
	require.Equal(t, 16, tex.Height())
	require.Equal(t, checkerMagenta, tex.Image.RGBAAt(0, 0))
	require.Equal(t, checkerBlack, tex.Image.RGBAAt(8, 0))
	require.Equal(t, checkerBlack, tex.Image.RGBAAt(0, 8))
	require.Equal(t, checkerMagenta, tex.Image.RGBAAt(15, 15))
}

func TestFont_LoadAndDefault(t *testing.T) {
	r, _ := newRegistry(t, map[string][]byte{
		"assets/fonts/go.ttf":  goregular.TTF,
		"assets/fonts/bad.ttf": []byte("nope"),
	})

	f := resource.Get[Font](r, "go.ttf")
	require.False(t, resource.IsDefault(r, f))
	require.Greater(t, f.Glyphs(), 0)
	require.Contains(t, f.Name, "Go")

	face, err := f.Face(12)
	require.NoError(t, err)
	require.NoError(t, face.Close())

	def := resource.Get[Font](r, "bad.ttf")
	require.True(t, resource.IsDefault(r, def))
	require.Equal(t, f.Glyphs(), def.Glyphs())

	empty := &Font{Name: "empty"}
	_, err = empty.Face(12)
	require.Error(t, err)
}

func TestShader_CompilesWGSL(t *testing.T) {
	r, _ := newRegistry(t, map[string][]byte{
		"assets/shaders/basic.wgsl": []byte(PassthroughWGSL),
		"assets/shaders/bad.wgsl":   []byte("fn main( {"),
	})

	s := resource.Get[Shader](r, "basic.wgsl")
	require.False(t, resource.IsDefault(r, s))
	require.Equal(t, PassthroughWGSL, s.Source)
	words := s.Words()
	require.NotEmpty(t, words)
	require.Equal(t, uint32(spirvMagic), words[0])

	bad := resource.Get[Shader](r, "bad.wgsl")
	require.True(t, resource.IsDefault(r, bad))
	require.Equal(t, PassthroughWGSL, bad.Source)
	require.NotEmpty(t, bad.SPIRV)
}

func TestScript_RunsInSandbox(t *testing.T) {
	r, _ := newRegistry(t, map[string][]byte{
		"assets/scripts/sum.lua":     []byte("local t = {1, 2, 3}\nlocal s = 0\nfor _, v in ipairs(t) do s = s + v end\nreturn s, string.upper('ok'), true, nil"),
		"assets/scripts/sandbox.lua": []byte("return io == nil, os == nil, require == nil, loadstring == nil"),
		"assets/scripts/syntax.lua":  []byte("return ("),
		"assets/scripts/error.lua":   []byte("error('boom')"),
	})

	sum := resource.Get[Script](r, "sum.lua")
	out, err := sum.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []any{6.0, "OK", true, nil}, out)

	// Each run starts from a fresh state.
	again, err := sum.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, out, again)

	sandbox, err := resource.Get[Script](r, "sandbox.lua").Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []any{true, true, true, true}, sandbox)

	syntax := resource.Get[Script](r, "syntax.lua")
	require.True(t, resource.IsDefault(r, syntax))
	none, err := syntax.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = resource.Get[Script](r, "error.lua").Run(context.Background())
	require.ErrorContains(t, err, "boom")
}

func TestScript_RespectsContext(t *testing.T) {
	r, _ := newRegistry(t, map[string][]byte{
		"assets/scripts/spin.lua": []byte("while true do end"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := resource.Get[Script](r, "spin.lua").Run(ctx)
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	r := resource.New("root", resource.WithFS(afero.NewMemMapFs()), resource.WithLogger(log.Nop()))
	require.NoError(t, Register(r, map[string]string{"texture": "images"}))

	require.Len(t, r.Types(), len(Kinds()))
	require.Equal(t, "root/images/x.png", resource.Path[Texture](r, "x.png"))
	require.Equal(t, "root/fonts/x.ttf", resource.Path[Font](r, "x.ttf"))

	require.ErrorIs(t, Register(r, nil), resource.ErrAlreadyRegistered)

	other := resource.New("root", resource.WithLogger(log.Nop()))
	require.ErrorContains(t, Register(other, map[string]string{"sound": "sfx"}), `unknown resource type "sound"`)
}

func TestKind_LoadByName(t *testing.T) {
	r, _ := newRegistry(t, map[string][]byte{
		"assets/config/a.gen": []byte("x:1\n"),
		"elsewhere/b.gen":     []byte("y:2\n"),
	})

	k, ok := KindByName("config")
	require.True(t, ok)
	require.Equal(t, "config", k.Dir)

	v, isDefault := k.Load(r, "a.gen")
	require.False(t, isDefault)
	require.Equal(t, 1, v.(*Config).Tree.GetInt("x", 0))

	v, isDefault = k.LoadFromRoot(r, "elsewhere/b.gen")
	require.False(t, isDefault)
	require.Equal(t, 2, v.(*Config).Tree.GetInt("y", 0))

	_, isDefault = k.Load(r, "missing.gen")
	require.True(t, isDefault)

	_, ok = KindByName("sound")
	require.False(t, ok)
}
