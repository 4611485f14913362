package gen

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const windowDoc = `Window{
    resizable
    title:Main Window
    width:800
    height:600
}
`

func TestParse_WindowExample(t *testing.T) {
	tree, err := Parse(windowDoc)
	require.NoError(t, err)
	require.Equal(t, []string{"Window"}, tree.Keys())

	w, ok := tree.Get("Window")
	require.True(t, ok)
	require.Equal(t, "", w.Value)
	require.NotNil(t, w.Children)

	sub := tree.SubValues("Window")
	require.Equal(t, []string{"resizable", "title", "width", "height"}, sub.Keys())
	require.True(t, sub.GetBool("resizable", false))
	require.Equal(t, "Main Window", sub.GetString("title", ""))
	require.Equal(t, 800, sub.GetInt("width", 0))
	require.Equal(t, 600, sub.GetInt("height", 0))
}

func TestParse_EntryForms(t *testing.T) {
	tree, err := Parse("flag\nname:value with spaces\nurl:http://example.com/a\nblock:inline{\n  child:1\n}\n")
	require.NoError(t, err)

	flag, _ := tree.Get("flag")
	require.True(t, flag.IsTag())

	require.Equal(t, "value with spaces", tree.GetString("name", ""))
	require.Equal(t, "http://example.com/a", tree.GetString("url", ""))

	block, _ := tree.Get("block")
	require.Equal(t, "inline", block.Value)
	require.Equal(t, 1, block.Children.GetInt("child", 0))
}

func TestParse_TolerantWhitespaceAndComments(t *testing.T) {
	doc := `
# leading comment

   // another comment
	Shader {
		  vertex :  basic.vert
		fragment:basic.frag
		# nested comment
	}

	debug
`
	tree, err := Parse(doc)
	require.NoError(t, err)
	require.Equal(t, []string{"Shader", "debug"}, tree.Keys())

	sh := tree.SubValues("Shader")
	require.NotNil(t, sh)
	require.Equal(t, "basic.vert", sh.GetString("vertex", ""))
	require.Equal(t, "basic.frag", sh.GetString("fragment", ""))
	require.Equal(t, 2, sh.Len())
}

func TestParse_SingleLineBlocks(t *testing.T) {
	tree, err := Parse("a{b:1}c{d{e}}")
	require.NoError(t, err)
	require.Equal(t, 1, tree.SubValues("a").GetInt("b", 0))
	require.True(t, tree.SubValues("c").SubValues("d").GetBool("e", false))
}

func TestParse_BraceOnNextLine(t *testing.T) {
	tree, err := Parse("Window\n{\n  width:640\n}\nnext\n")
	require.NoError(t, err)
	require.Equal(t, 640, tree.SubValues("Window").GetInt("width", 0))
	require.True(t, tree.Present("next"))
}

func TestParse_EmptyBlock(t *testing.T) {
	tree, err := Parse("empty{}\n")
	require.NoError(t, err)
	require.True(t, tree.HasSubValues("empty"))
	require.Equal(t, 0, tree.SubValues("empty").Len())
}

func TestParse_DuplicateKeyLastWins(t *testing.T) {
	tree, err := Parse("a:1\nb:2\na:3\n")
	require.NoError(t, err)
	require.Equal(t, 3, tree.GetInt("a", 0))
	require.Equal(t, []string{"a", "b"}, tree.Keys())
}

func TestParse_MalformedBraces(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		line int
		msg  string
	}{
		{"unexpected close", "a:1\n}\n", 2, "unexpected closing brace"},
		{"missing close", "a{\n  b:1\n", 1, "missing closing brace"},
		{"nested missing close", "a{\n  b{\n  }\n", 1, "missing closing brace"},
		{"extra close after block", "a{\n}\n}\n", 3, "unexpected closing brace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.doc)
			require.Nil(t, tree)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			require.Equal(t, tt.line, pe.Line)
			require.Equal(t, tt.msg, pe.Message)
		})
	}
}

func TestConsume_FailureLeavesTreeUntouched(t *testing.T) {
	tree, err := Parse("keep:1\n")
	require.NoError(t, err)

	err = tree.Consume("added:2\nbroken{\n")
	require.Error(t, err)
	require.Equal(t, []string{"keep"}, tree.Keys())
	require.False(t, tree.Present("added"))
}

func TestConsume_MergesIntoExisting(t *testing.T) {
	tree, err := Parse("a:1\nb:2\n")
	require.NoError(t, err)

	require.NoError(t, tree.Consume("b:20\nc:30\n"))
	require.Equal(t, []string{"a", "b", "c"}, tree.Keys())
	require.Equal(t, 20, tree.GetInt("b", 0))
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config/window.gen", []byte(windowDoc), 0644))

	tree := New()
	require.NoError(t, tree.Load(fs, "config/window.gen"))
	require.Equal(t, 800, tree.SubValues("Window").GetInt("width", 0))
}

func TestLoad_MissingFileDoesNotMutate(t *testing.T) {
	fs := afero.NewMemMapFs()

	tree, err := Parse("keep\n")
	require.NoError(t, err)

	err = tree.Load(fs, "nope.gen")
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.Equal(t, []string{"keep"}, tree.Keys())
}

func TestLoad_ParseErrorCarriesPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.gen", []byte("a{\n"), 0644))

	_, err := LoadFile(fs, "bad.gen")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "bad.gen", pe.Path)
	require.Contains(t, err.Error(), "parse error in bad.gen at line 1")
}

func TestParseError_Message(t *testing.T) {
	require.Equal(t, "parse error in <string>: boom", (&ParseError{Message: "boom"}).Error())
	require.Equal(t, "parse error in x.gen at line 4: boom", (&ParseError{Path: "x.gen", Line: 4, Message: "boom"}).Error())
}
