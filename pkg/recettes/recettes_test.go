package recettes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/prefs"
	"github.com/cognicore/recettes/pkg/recettes/store"
	"github.com/cognicore/recettes/pkg/recettes/store/memstore"
)

func newTestEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	e := New(Options{Store: st})
	t.Cleanup(func() { _ = e.Close() })
	return e, st
}

func seed(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	for _, r := range []store.Recipe{
		{ID: "a", Nom: "Caprese", Ingredients: "tomates, basilic, mozzarella", AuthorID: "chef"},
		{ID: "b", Nom: "Curry", Ingredients: "poulet, curry, riz", AuthorID: "chef"},
		{ID: "c", Nom: "Salade", Ingredients: "2 tomates; 1 oignon", AuthorID: "other"},
	} {
		_, err := e.PutRecipe(ctx, r)
		require.NoError(t, err)
	}
}

func TestPutRecipeAssignsIDAndTime(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	r, err := e.PutRecipe(ctx, store.Recipe{Nom: "Soupe", Ingredients: "poireaux"})
	require.NoError(t, err)
	assert.Len(t, r.ID, 26)
	assert.NotZero(t, r.CreatedAt)

	got, found, err := e.Recipe(ctx, r.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r, got)

	_, found, err = e.Recipe(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecipesSkipsUndecodable(t *testing.T) {
	e, st := newTestEngine(t)
	seed(t, e)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, store.RecipePath("broken"), []string{"not", "a", "recipe"}))

	recipes, err := e.Recipes(ctx)
	require.NoError(t, err)
	ids := make([]string, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRecommendEndToEnd(t *testing.T) {
	e, _ := newTestEngine(t)
	seed(t, e)
	ctx := context.Background()

	caprese, err := e.ViewRecipe(ctx, "a", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Caprese", caprese.Nom)

	salade, _, err := e.Recipe(ctx, "c")
	require.NoError(t, err)
	_, err = e.Reactions().Toggle(ctx, salade, "u1", "🔥")
	require.NoError(t, err)

	h, err := e.Preferences().Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, prefs.Histogram{"tomates": 3, "basilic": 1, "mozzarella": 1, "oignon": 2}, h)

	results, err := e.Recommend(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Equal scores keep ID order.
	assert.Equal(t, "a", results[0].Recipe.ID)
	assert.Equal(t, int64(5), results[0].Score)
	assert.Equal(t, "c", results[1].Recipe.ID)
	assert.Equal(t, int64(5), results[1].Score)

	_, err = e.Comments().Post(ctx, caprese, "u1", "délicieux")
	require.NoError(t, err)
	results, err = e.Recommend(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a", results[0].Recipe.ID)
	assert.Equal(t, int64(14), results[0].Score)
}

func TestRecommendEmpty(t *testing.T) {
	e, _ := newTestEngine(t)
	seed(t, e)
	ctx := context.Background()

	results, err := e.Recommend(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	results, err = e.Recommend(ctx, "newcomer")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAuthorViewIsIgnored(t *testing.T) {
	e, _ := newTestEngine(t)
	seed(t, e)
	ctx := context.Background()

	_, err := e.ViewRecipe(ctx, "a", "chef")
	require.NoError(t, err)

	h, err := e.Preferences().Load(ctx, "chef")
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestViewMissingRecipe(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.ViewRecipe(context.Background(), "nope", "u1")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestDeleteRecipe(t *testing.T) {
	e, st := newTestEngine(t)
	seed(t, e)
	ctx := context.Background()

	a, _, err := e.Recipe(ctx, "a")
	require.NoError(t, err)
	_, err = e.Comments().Post(ctx, a, "u1", "top")
	require.NoError(t, err)

	assert.ErrorIs(t, e.DeleteRecipe(ctx, "a", "u1"), internalerr.ErrForbidden)
	assert.ErrorIs(t, e.DeleteRecipe(ctx, "zzz", "chef"), internalerr.ErrNotFound)

	require.NoError(t, e.DeleteRecipe(ctx, "a", "chef"))
	assert.Empty(t, st.Keys("recettes/a"))

	// Preferences earned from the recipe stay.
	h, err := e.Preferences().Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), h["tomates"])
}

func TestEngineDefaults(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, 6, e.Scorer().Limit())
	assert.Equal(t, 2, e.Signals().Weights().Reaction)
	assert.Equal(t, []string{"farine"}, e.Keywords("200 g de farine").Sorted())
}
