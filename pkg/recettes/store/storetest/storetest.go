// Package storetest holds behavior checks shared by every store.Store
// backend.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) store.Store

// Run exercises the full store.Store contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("ReadMissing", func(t *testing.T) { testReadMissing(t, newStore(t)) })
	t.Run("WriteRead", func(t *testing.T) { testWriteRead(t, newStore(t)) })
	t.Run("WriteReplaces", func(t *testing.T) { testWriteReplaces(t, newStore(t)) })
	t.Run("DeleteSubtree", func(t *testing.T) { testDeleteSubtree(t, newStore(t)) })
	t.Run("ListDirectChildren", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("InvalidPath", func(t *testing.T) { testInvalidPath(t, newStore(t)) })
	t.Run("Subscribe", func(t *testing.T) { testSubscribe(t, newStore(t)) })
	t.Run("IncrementFields", func(t *testing.T) { testIncrement(t, newStore(t)) })
	t.Run("ConcurrentIncrement", func(t *testing.T) { testConcurrentIncrement(t, newStore(t)) })
}

func testReadMissing(t *testing.T, s store.Store) {
	defer s.Close()
	var v map[string]int64
	found, err := s.Read(context.Background(), "users/nobody/preferences", &v)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
}

func testWriteRead(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	r := store.Recipe{Nom: "Tarte", Ingredients: "pommes, sucre", AuthorID: "u1", CreatedAt: 42}
	require.NoError(t, s.Write(ctx, store.RecipePath("r1"), r))

	var got store.Recipe
	found, err := s.Read(ctx, store.RecipePath("r1"), &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r, got)
}

func testWriteReplaces(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	path := store.PreferencesPath("u1")

	require.NoError(t, s.Write(ctx, path, map[string]int64{"tomates": 1, "sel": 2}))
	require.NoError(t, s.Write(ctx, path, map[string]int64{"farine": 5}))

	var got map[string]int64
	found, err := s.Read(ctx, path, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]int64{"farine": 5}, got)
}

func testDeleteSubtree(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "recettes/r1", store.Recipe{Nom: "a"}))
	require.NoError(t, s.Write(ctx, "recettes/r1/comments/c1", map[string]string{"text": "miam"}))
	require.NoError(t, s.Write(ctx, "recettes/r10", store.Recipe{Nom: "b"}))

	require.NoError(t, s.Delete(ctx, "recettes/r1"))

	found, err := s.Read(ctx, "recettes/r1", nil)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = s.Read(ctx, "recettes/r1/comments/c1", nil)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = s.Read(ctx, "recettes/r10", nil)
	require.NoError(t, err)
	assert.True(t, found, "sibling sharing a name prefix must survive")

	require.NoError(t, s.Delete(ctx, "recettes/missing"))
}

func testList(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "recettes/a", store.Recipe{Nom: "A"}))
	require.NoError(t, s.Write(ctx, "recettes/b", store.Recipe{Nom: "B"}))
	require.NoError(t, s.Write(ctx, "recettes/a/reactions/u1", map[string]string{"emoji": "🔥"}))
	require.NoError(t, s.Write(ctx, "recettesx/c", store.Recipe{Nom: "C"}))

	children, err := s.List(ctx, "recettes")
	require.NoError(t, err)

	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a", "b"}, names)

	var r store.Recipe
	require.NoError(t, store.Decode(children["b"], &r))
	assert.Equal(t, "B", r.Nom)

	empty, err := s.List(ctx, "nothing/here")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testInvalidPath(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	for _, p := range []string{"", "/users", "users/", "users//x", "users/a.b", "a/[b]"} {
		err := s.Write(ctx, p, 1)
		assert.True(t, errors.Is(err, internalerr.ErrInvalidPath), "path %q: %v", p, err)
	}
}

func testSubscribe(t *testing.T, s store.Store) {
	defer s.Close()
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	var (
		mu     sync.Mutex
		events []store.Event
	)
	cancel, err := s.Subscribe(ctx, "users/u1", func(ev store.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	// Subscribe returns once the feed is attached: the very next write
	// must be delivered.
	require.NoError(t, s.Write(ctx, store.PreferencesPath("u1"), map[string]int64{"sel": 1}))
	require.NoError(t, s.Write(ctx, store.PreferencesPath("u2"), map[string]int64{"sel": 1}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	first := events[0]
	mu.Unlock()
	assert.Equal(t, "users/u1/preferences", first.Path)
	assert.False(t, first.Deleted)
	var h map[string]int64
	require.NoError(t, store.Decode(first.Value, &h))
	assert.Equal(t, int64(1), h["sel"])

	cancel()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	before := len(events)
	mu.Unlock()

	require.NoError(t, s.Write(ctx, store.PreferencesPath("u1"), map[string]int64{"sel": 2}))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, before, len(events), "no events after cancel")
	for _, ev := range events {
		assert.NotEqual(t, "users/u2/preferences", ev.Path)
	}
}

func testIncrement(t *testing.T, s store.Store) {
	defer s.Close()
	inc, ok := s.(store.Incrementer)
	if !ok {
		t.Skip("backend does not implement store.Incrementer")
	}
	ctx := context.Background()
	path := store.PreferencesPath("u1")

	require.NoError(t, inc.IncrementFields(ctx, path, map[string]int64{"tomates": 1}))
	require.NoError(t, inc.IncrementFields(ctx, path, map[string]int64{"tomates": 2, "sel": 1}))

	var got map[string]int64
	found, err := s.Read(ctx, path, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]int64{"tomates": 3, "sel": 1}, got)
}

func testConcurrentIncrement(t *testing.T, s store.Store) {
	defer s.Close()
	inc, ok := s.(store.Incrementer)
	if !ok {
		t.Skip("backend does not implement store.Incrementer")
	}
	ctx := context.Background()
	path := store.PreferencesPath("u1")

	const workers = 50
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- inc.IncrementFields(ctx, path, map[string]int64{"tomates": 1})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	var got map[string]int64
	found, err := s.Read(ctx, path, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(workers), got["tomates"])
}
