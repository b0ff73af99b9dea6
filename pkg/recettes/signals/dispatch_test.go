package signals

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/recettes/internal/metrics"
	"github.com/cognicore/recettes/pkg/recettes/keywords"
	"github.com/cognicore/recettes/pkg/recettes/prefs"
	"github.com/cognicore/recettes/pkg/recettes/store"
	"github.com/cognicore/recettes/pkg/recettes/store/memstore"
)

type call struct {
	user   string
	kws    []string
	weight int
}

type recorder struct {
	calls []call
	err   error
}

func (r *recorder) Update(ctx context.Context, userID string, kws keywords.Set, weight int) error {
	r.calls = append(r.calls, call{user: userID, kws: kws.Sorted(), weight: weight})
	return r.err
}

var tarte = store.Recipe{ID: "r1", AuthorID: "chef", Ingredients: "3 tomates, 200g farine"}

func TestWeightsPerKind(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, nil, DefaultWeights(), zerolog.Nop())
	ctx := context.Background()

	d.RecipeViewed(ctx, "u1", tarte)
	d.ReactionAdded(ctx, "u1", tarte)
	d.CommentPosted(ctx, "u1", tarte)

	require.Len(t, rec.calls, 3)
	assert.Equal(t, 1, rec.calls[0].weight)
	assert.Equal(t, 2, rec.calls[1].weight)
	assert.Equal(t, 3, rec.calls[2].weight)
	for _, c := range rec.calls {
		assert.Equal(t, "u1", c.user)
		assert.Equal(t, []string{"farine", "tomates"}, c.kws)
	}
}

func TestViewSkipsAuthorAndAnonymous(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, nil, DefaultWeights(), zerolog.Nop())
	ctx := context.Background()

	d.RecipeViewed(ctx, "chef", tarte)
	d.RecipeViewed(ctx, "", tarte)
	d.ReactionAdded(ctx, "", tarte)
	d.CommentPosted(ctx, "", tarte)
	d.CommentPosted(ctx, "u1", store.Recipe{ID: "empty"})

	assert.Empty(t, rec.calls)
}

func TestAuthorCanStillReactAndComment(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, nil, DefaultWeights(), zerolog.Nop())

	d.ReactionAdded(context.Background(), "chef", tarte)
	d.CommentPosted(context.Background(), "chef", tarte)
	assert.Len(t, rec.calls, 2)
}

func TestFailuresAreLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{err: errors.New("permission denied")}
	d := NewDispatcher(rec, nil, DefaultWeights(), zerolog.New(&buf))

	before := testutil.ToFloat64(metrics.SignalsTotal.WithLabelValues("comment", metrics.OutcomeFailed))
	d.CommentPosted(context.Background(), "u1", tarte)
	after := testutil.ToFloat64(metrics.SignalsTotal.WithLabelValues("comment", metrics.OutcomeFailed))

	assert.Equal(t, before+1, after)
	assert.Contains(t, buf.String(), "preference update failed")
	assert.Contains(t, buf.String(), "permission denied")
	assert.Contains(t, buf.String(), `"user":"u1"`)
}

func TestEndToEndWithAccumulator(t *testing.T) {
	st := memstore.New()
	acc := prefs.NewAccumulator(st)
	d := NewDispatcher(acc, nil, DefaultWeights(), zerolog.Nop())
	ctx := context.Background()

	d.RecipeViewed(ctx, "u1", tarte)
	d.ReactionAdded(ctx, "u1", tarte)
	d.CommentPosted(ctx, "u1", tarte)

	h, err := acc.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, prefs.Histogram{"tomates": 6, "farine": 6}, h)

	// A failing store loses the signal without disturbing the caller.
	st.FailWrites(errors.New("offline"))
	d.RecipeViewed(ctx, "u1", tarte)
	st.FailWrites(nil)

	h, err = acc.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), h["tomates"])
}

func TestWeightsFor(t *testing.T) {
	w := Weights{View: 4, Reaction: 5, Comment: 6}
	assert.Equal(t, 4, w.For(View))
	assert.Equal(t, 5, w.For(Reaction))
	assert.Equal(t, 6, w.For(Comment))
	assert.Equal(t, 0, w.For(Kind("share")))
}
