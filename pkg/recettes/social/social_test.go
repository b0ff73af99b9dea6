package social

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/store"
	"github.com/cognicore/recettes/pkg/recettes/store/memstore"
)

type signalLog struct {
	reactions []string
	comments  []string
}

func (s *signalLog) ReactionAdded(ctx context.Context, userID string, recipe store.Recipe) {
	s.reactions = append(s.reactions, userID+"@"+recipe.ID)
}

func (s *signalLog) CommentPosted(ctx context.Context, userID string, recipe store.Recipe) {
	s.comments = append(s.comments, userID+"@"+recipe.ID)
}

var soupe = store.Recipe{ID: "soupe", Ingredients: "poireaux, pommes de terre"}

func TestToggleReaction(t *testing.T) {
	st := memstore.New()
	sig := &signalLog{}
	r := NewReactions(st, sig)
	ctx := context.Background()

	got, err := r.Toggle(ctx, soupe, "u1", "🔥")
	require.NoError(t, err)
	assert.Equal(t, "🔥", got)

	// Switching emoji is a new reaction.
	got, err = r.Toggle(ctx, soupe, "u1", "😋")
	require.NoError(t, err)
	assert.Equal(t, "😋", got)

	// Same emoji again retracts it without a signal.
	got, err = r.Toggle(ctx, soupe, "u1", "😋")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	assert.Equal(t, []string{"u1@soupe", "u1@soupe"}, sig.reactions)

	current, err := r.Get(ctx, "soupe", "u1")
	require.NoError(t, err)
	assert.Equal(t, "", current)
}

func TestToggleRejectsInvalidInput(t *testing.T) {
	r := NewReactions(memstore.New(), nil)
	ctx := context.Background()

	_, err := r.Toggle(ctx, soupe, "u1", "🍕")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = r.Toggle(ctx, soupe, "", "🔥")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = r.Toggle(ctx, store.Recipe{}, "u1", "🔥")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestReactionCounts(t *testing.T) {
	r := NewReactions(memstore.New(), nil)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c"} {
		_, err := r.Toggle(ctx, soupe, u, "👍")
		require.NoError(t, err)
	}
	_, err := r.Toggle(ctx, soupe, "d", "❤️")
	require.NoError(t, err)

	counts, err := r.Counts(ctx, "soupe")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 3, "❤️": 1}, counts)
}

func TestPostAndListComments(t *testing.T) {
	st := memstore.New()
	sig := &signalLog{}
	c := NewComments(st, sig)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return base }
	first, err := c.Post(ctx, soupe, "u1", "  Délicieux !  ")
	require.NoError(t, err)
	assert.Equal(t, "Délicieux !", first.Text)
	assert.NotEmpty(t, first.ID)

	c.now = func() time.Time { return base.Add(time.Minute) }
	_, err = c.Post(ctx, soupe, "u2", "Un peu salé")
	require.NoError(t, err)

	list, err := c.List(ctx, "soupe")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "u2", list[1].AuthorID)

	assert.Equal(t, []string{"u1@soupe", "u2@soupe"}, sig.comments)
}

func TestPostRejectsBlank(t *testing.T) {
	sig := &signalLog{}
	c := NewComments(memstore.New(), sig)

	_, err := c.Post(context.Background(), soupe, "u1", "   ")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
	assert.Empty(t, sig.comments)
}

func TestDeleteComment(t *testing.T) {
	c := NewComments(memstore.New(), nil)
	ctx := context.Background()

	cm, err := c.Post(ctx, soupe, "u1", "miam")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Delete(ctx, "soupe", cm.ID, "u2"), internalerr.ErrForbidden)
	assert.ErrorIs(t, c.Delete(ctx, "soupe", cm.ID, ""), internalerr.ErrForbidden)
	assert.ErrorIs(t, c.Delete(ctx, "soupe", "nope", "u1"), internalerr.ErrNotFound)

	require.NoError(t, c.Delete(ctx, "soupe", cm.ID, "u1"))
	list, err := c.List(ctx, "soupe")
	require.NoError(t, err)
	assert.Empty(t, list)
}
