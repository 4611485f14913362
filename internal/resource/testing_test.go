package resource

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/grae/internal/log"
)

// released counts Release calls across all test resources.
var released atomic.Int32

// holdEntered receives when a "hold" note starts loading; the load then
// blocks until holdRelease is closed.
var holdEntered, holdRelease chan struct{}

// note is a test resource driven by its file contents:
//
//	fail        Load returns an error
//	panic       Load panics
//	slow        Load sleeps before succeeding
//	hold        Load blocks on holdRelease
//	dep:<id>    Load requests another note by id
//	root:<path> Load requests another note from the root
type note struct {
	Path    string
	Text    string
	Default bool
	Dep     *note
}

func (n *note) Load(l Lookup, path string) error {
	data, err := afero.ReadFile(l.FS(), path)
	if err != nil {
		return err
	}
	n.Path = path
	n.Text = strings.TrimSpace(string(data))

	switch {
	case n.Text == "fail":
		return errors.New("broken note")
	case n.Text == "panic":
		panic("boom")
	case n.Text == "slow":
		time.Sleep(20 * time.Millisecond)
	case n.Text == "hold":
		holdEntered <- struct{}{}
		<-holdRelease
	case strings.HasPrefix(n.Text, "dep:"):
		n.Dep = Get[note](l, strings.TrimPrefix(n.Text, "dep:"))
	case strings.HasPrefix(n.Text, "root:"):
		n.Dep = GetFromRoot[note](l, strings.TrimPrefix(n.Text, "root:"))
	}
	return nil
}

func (n *note) LoadDefault(Lookup) {
	n.Default = true
	n.Text = "default"
}

func (n *note) Release() {
	released.Add(1)
}

// card depends on a note, to exercise cross-type lookups.
type card struct {
	Title string
	Body  *note
}

func (c *card) Load(l Lookup, path string) error {
	data, err := afero.ReadFile(l.FS(), path)
	if err != nil {
		return err
	}
	title, body, _ := strings.Cut(strings.TrimSpace(string(data)), "|")
	c.Title = title
	c.Body = Get[note](l, body)
	return nil
}

func (c *card) LoadDefault(l Lookup) {
	c.Title = "untitled"
	c.Body = Default[note](l)
}

// loop's default asks for itself while it is being built.
type loop struct {
	Self *loop
}

func (*loop) Load(Lookup, string) error { return errors.New("loops are never loaded") }

func (lp *loop) LoadDefault(l Lookup) {
	lp.Self = Default[loop](l)
}

func newTestRegistry(t *testing.T, files map[string]string, opts ...Option) (*Registry, *log.Recorder) {
	t.Helper()
	released.Store(0)

	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}

	rec := log.NewRecorder()
	logger := log.New(log.WithSink(rec))
	t.Cleanup(logger.Close)

	opts = append([]Option{WithFS(fs), WithLogger(logger), WithID("test")}, opts...)
	r := New("assets", opts...)
	MustInit[note](r, "notes")
	return r, rec
}

// errorsWith returns the error entries whose "error" field contains substr.
func errorsWith(rec *log.Recorder, substr string) []log.Entry {
	var out []log.Entry
	for _, e := range rec.Filter(log.LevelError, log.CatResource) {
		if v, ok := e.Field("error"); ok && strings.Contains(v.(string), substr) {
			out = append(out, e)
		}
	}
	return out
}
