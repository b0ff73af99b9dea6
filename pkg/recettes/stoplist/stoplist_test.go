package stoplist

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/recettes/pkg/recettes/keywords"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

func corpus(n int) []store.Recipe {
	recipes := make([]store.Recipe, n)
	for i := range recipes {
		ing := "sel, poivre"
		if i%2 == 0 {
			ing += ", beurre"
		}
		recipes[i] = store.Recipe{Ingredients: fmt.Sprintf("%s, plat%c", ing, 'a'+i)}
	}
	return recipes
}

func analyze(ex *keywords.Extractor, recipes []store.Recipe) *Analyzer {
	a := NewAnalyzer(ex)
	for _, r := range recipes {
		a.Process(r)
	}
	return a
}

func TestSnapshot(t *testing.T) {
	a := analyze(nil, corpus(10))
	assert.Equal(t, int64(10), a.Total())

	stats := a.Snapshot()
	require.GreaterOrEqual(t, len(stats), 3)
	assert.Equal(t, "poivre", stats[0].Keyword)
	assert.Equal(t, "sel", stats[1].Keyword)
	assert.Equal(t, float64(100), stats[1].DFPercent)
	assert.Equal(t, float64(0), stats[1].IDF)
	assert.Equal(t, "beurre", stats[2].Keyword)
	assert.Equal(t, float64(50), stats[2].DFPercent)
	assert.InDelta(t, 0.693, stats[2].IDF, 0.001)
}

func TestSnapshotEmpty(t *testing.T) {
	assert.Empty(t, NewAnalyzer(nil).Snapshot())
}

func TestSuggest(t *testing.T) {
	a := analyze(nil, corpus(10))

	got := a.Suggest(Thresholds{})
	require.Len(t, got, 2)
	assert.Equal(t, "poivre", got[0].Keyword)
	assert.Equal(t, "sel", got[1].Keyword)
	assert.Equal(t, 1.0, got[0].Score)

	got = a.Suggest(Thresholds{DFPercent: 40})
	require.Len(t, got, 3)
	assert.Equal(t, "beurre", got[2].Keyword)
	assert.InDelta(t, 10.0/60.0, got[2].Score, 1e-9)
}

func TestSuggestNeedsEnoughRecipes(t *testing.T) {
	a := analyze(nil, corpus(5))
	assert.Empty(t, a.Suggest(Thresholds{}))
	assert.Len(t, a.Suggest(Thresholds{MinRecipes: 5}), 2)
}

func TestApply(t *testing.T) {
	ex := keywords.Default()
	a := analyze(ex, corpus(10))

	added := Apply(ex, a.Suggest(Thresholds{}))
	assert.Equal(t, []string{"poivre", "sel"}, added)
	assert.Equal(t, []string{"beurre"}, ex.Extract("sel, poivre, beurre").Sorted())

	assert.Empty(t, Apply(ex, a.Suggest(Thresholds{})))
}
