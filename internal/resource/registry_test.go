package resource

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/grae/internal/log"
)

func TestGet_LoadsOnceAndCaches(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/a.txt": "hello",
	})

	first := Get[note](r, "a.txt")
	second := Get[note](r, "a.txt")

	require.Same(t, first, second)
	require.Equal(t, "hello", first.Text)
	require.Equal(t, "assets/notes/a.txt", first.Path)
	require.False(t, first.Default)
	require.Equal(t, 1, rec.Count(log.LevelDebug, "loaded resource"))
}

func TestGet_ResolvesUnderTypeDirectory(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"assets/notes/deep/b.txt": "b",
	})

	require.Equal(t, "assets/notes/deep/b.txt", Path[note](r, "deep/b.txt"))
	require.False(t, Exists[note](r, "assets/notes/deep/b.txt"))

	Get[note](r, "deep/b.txt")
	require.True(t, Exists[note](r, "assets/notes/deep/b.txt"))
	require.False(t, Exists[note](r, "deep/b.txt"))
}

func TestGet_EmptyRootAndDirectory(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"x.txt": "x"})
	bare := New("", WithFS(r.FS()), WithLogger(log.Nop()))
	MustInit[note](bare, "")

	require.Equal(t, "x.txt", Path[note](bare, "x.txt"))
	require.Equal(t, "x", Get[note](bare, "x.txt").Text)
}

func TestGetFromRoot_UsesPathVerbatim(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/a.txt": "same file",
	})

	viaGet := Get[note](r, "a.txt")
	viaRoot := GetFromRoot[note](r, "assets/notes/a.txt")
	require.Same(t, viaGet, viaRoot)

	// A path relative to the type directory is not resolved by GetFromRoot.
	miss := GetFromRoot[note](r, "a.txt")
	require.True(t, miss.Default)
	require.Equal(t, 1, rec.Count(log.LevelDebug, "loaded resource"))
}

func TestGet_EmptyIDReturnsDefault(t *testing.T) {
	r, rec := newTestRegistry(t, nil)

	d1 := Get[note](r, "")
	d2 := GetFromRoot[note](r, "")
	d3 := Default[note](r)

	require.True(t, d1.Default)
	require.Same(t, d1, d2)
	require.Same(t, d1, d3)
	require.True(t, IsDefault(r, d1))
	require.Equal(t, 1, rec.Count(log.LevelDebug, "loading default resource"))
}

func TestGet_MissingFileFallsBackToDefault(t *testing.T) {
	r, rec := newTestRegistry(t, nil)

	got := Get[note](r, "missing.txt")
	require.NotNil(t, got)
	require.True(t, got.Default)
	require.Same(t, Default[note](r), got)
	require.Len(t, rec.Filter(log.LevelError, log.CatResource), 1)

	// Failures are not cached; the next lookup tries again.
	require.False(t, Exists[note](r, "assets/notes/missing.txt"))
	Get[note](r, "missing.txt")
	require.Equal(t, 2, rec.Count(log.LevelError, "failed to load resource"))
}

func TestGet_FailedLoadIsReleased(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/bad.txt": "fail",
	})

	got := Get[note](r, "bad.txt")
	require.True(t, got.Default)
	require.EqualValues(t, 1, released.Load())
	require.Len(t, errorsWith(rec, "broken note"), 1)
}

func TestGet_PanickingLoadFallsBack(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/p.txt": "panic",
	})

	got := Get[note](r, "p.txt")
	require.True(t, got.Default)
	require.Len(t, errorsWith(rec, "panic while loading assets/notes/p.txt: boom"), 1)
}

func TestGet_UnregisteredTypeReturnsDefault(t *testing.T) {
	r, rec := newTestRegistry(t, nil)

	got := Get[card](r, "c.txt")
	require.Equal(t, "untitled", got.Title)
	require.True(t, got.Body.Default)
	require.Len(t, errorsWith(rec, ErrNotRegistered.Error()), 1)
	require.Equal(t, "assets/c.txt", Path[card](r, "c.txt"))
}

func TestInit_Twice(t *testing.T) {
	r, _ := newTestRegistry(t, nil)

	err := Init[note](r, "other")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	require.Equal(t, "assets/notes/x", Path[note](r, "x"))

	require.Panics(t, func() { MustInit[note](r, "other") })
}

func TestGet_CrossTypeDependency(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"assets/cards/c.txt":     "Greeting|hello.txt",
		"assets/notes/hello.txt": "hi",
	})
	MustInit[card](r, "cards")

	c := Get[card](r, "c.txt")
	require.Equal(t, "Greeting", c.Title)
	require.Same(t, Get[note](r, "hello.txt"), c.Body)
}

func TestGet_DependencyViaRoot(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"assets/notes/a.txt": "root:shared/b.txt",
		"shared/b.txt":       "b",
	})

	a := Get[note](r, "a.txt")
	require.Equal(t, "b", a.Dep.Text)
	require.Same(t, GetFromRoot[note](r, "shared/b.txt"), a.Dep)
}

func TestGet_CycleFallsBackToDefault(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/a.txt": "dep:b.txt",
		"assets/notes/b.txt": "dep:a.txt",
	})

	a := Get[note](r, "a.txt")
	require.False(t, a.Default)
	require.NotNil(t, a.Dep)
	require.Equal(t, "dep:a.txt", a.Dep.Text)
	require.True(t, a.Dep.Dep.Default)

	cycles := errorsWith(rec, ErrCycle.Error())
	require.Len(t, cycles, 1)
	reason, _ := cycles[0].Field("error")
	require.Contains(t, reason, "resource.note(assets/notes/a.txt) -> resource.note(assets/notes/b.txt) -> resource.note(assets/notes/a.txt)")
}

func TestGet_SelfReference(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/self.txt": "dep:self.txt",
	})

	self := Get[note](r, "self.txt")
	require.False(t, self.Default)
	require.True(t, self.Dep.Default)
	require.Len(t, errorsWith(rec, ErrCycle.Error()), 1)
}

func TestDefault_ReentrantRequestGetsInProgressInstance(t *testing.T) {
	r, rec := newTestRegistry(t, nil)

	d := Default[loop](r)
	require.Same(t, d, d.Self)
	require.Same(t, d, Get[loop](r, ""))
	require.Equal(t, 1, rec.Count(log.LevelError, "default requested during its own construction"))
}

func TestClose_ReleasesEverythingOnce(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/a.txt": "a",
		"assets/notes/b.txt": "b",
		"assets/notes/c.txt": "c",
	})

	Get[note](r, "a.txt")
	Get[note](r, "b.txt")
	Get[note](r, "c.txt")
	Get[note](r, "")

	require.NoError(t, r.Close())
	require.EqualValues(t, 4, released.Load())
	require.Equal(t, 3, rec.Count(log.LevelVerbose, "resource unloaded"))
	require.Equal(t, 1, rec.Count(log.LevelVerbose, "default unloaded"))
	require.Equal(t, 1, rec.Count(log.LevelInfo, "all resources freed"))

	require.NoError(t, r.Close())
	require.EqualValues(t, 4, released.Load())

	after := Get[note](r, "a.txt")
	require.NotNil(t, after)
	require.False(t, after.Default)
	require.Empty(t, after.Text)
	require.NotEmpty(t, errorsWith(rec, ErrClosed.Error()))
	require.ErrorIs(t, Init[card](r, "cards"), ErrClosed)
	require.Empty(t, r.Types())
}

func TestClose_DuringLoadReleasesTheLateInstance(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/held.txt": "hold",
	})
	holdEntered, holdRelease = make(chan struct{}), make(chan struct{})

	done := make(chan *note)
	go func() { done <- Get[note](r, "held.txt") }()

	<-holdEntered
	require.NoError(t, r.Close())
	close(holdRelease)
	got := <-done
	require.NoError(t, r.Close())

	require.NotNil(t, got)
	require.False(t, got.Default)
	require.Empty(t, got.Text)
	require.EqualValues(t, 1, released.Load())
	require.Equal(t, 1, rec.Count(log.LevelError, "resource loaded after close"))
	require.Empty(t, r.Cached("resource.note"))
}

func TestRegistries_AreIndependent(t *testing.T) {
	r1, _ := newTestRegistry(t, map[string]string{"assets/notes/a.txt": "one"})
	r2, _ := newTestRegistry(t, map[string]string{"assets/notes/a.txt": "two"})

	require.Equal(t, "one", Get[note](r1, "a.txt").Text)
	require.Equal(t, "two", Get[note](r2, "a.txt").Text)
	require.NotSame(t, Default[note](r1), Default[note](r2))

	require.NoError(t, r1.Close())
	require.Equal(t, "two", Get[note](r2, "a.txt").Text)
}

func TestGet_ConcurrentMissesLoadOnce(t *testing.T) {
	r, rec := newTestRegistry(t, map[string]string{
		"assets/notes/slow.txt": "slow",
	})

	const workers = 32
	results := make([]*note, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = Get[note](r, "slow.txt")
		}()
	}
	wg.Wait()

	for _, got := range results {
		require.Same(t, results[0], got)
	}
	require.Equal(t, 1, rec.Count(log.LevelDebug, "loaded resource"))
}

func TestDefault_ConcurrentRequestsBuildOnce(t *testing.T) {
	r, rec := newTestRegistry(t, nil)

	const workers = 32
	results := make([]*note, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = Get[note](r, "")
		}()
	}
	wg.Wait()

	for _, got := range results {
		require.Same(t, results[0], got)
	}
	require.Equal(t, 1, rec.Count(log.LevelDebug, "loading default resource"))
}

func TestStatsAndTypes(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"assets/notes/a.txt": "a",
		"assets/notes/b.txt": "b",
	})
	MustInit[card](r, "cards")

	Get[note](r, "a.txt")
	Get[note](r, "b.txt")
	Default[loop](r)

	require.Equal(t, []string{"resource.card", "resource.note"}, r.Types())
	require.Equal(t, []string{"assets/notes/a.txt", "assets/notes/b.txt"}, r.Cached("resource.note"))
	require.Nil(t, r.Cached("resource.unknown"))

	require.Equal(t, []TypeStats{
		{Type: "resource.card", Dir: "cards", Registered: true},
		{Type: "resource.loop", DefaultLoaded: true},
		{Type: "resource.note", Dir: "notes", Registered: true, Cached: 2},
	}, r.Stats())
}

func TestNew_GeneratesID(t *testing.T) {
	a := New("x", WithLogger(log.Nop()))
	b := New("x", WithLogger(log.Nop()))
	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrAlreadyRegistered, ErrNotRegistered, ErrCycle, ErrClosed}
	for i, a := range all {
		for j, b := range all {
			require.Equal(t, i == j, errors.Is(a, b))
		}
	}
}
