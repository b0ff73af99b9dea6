package rank

import (
	"sort"

	"github.com/cognicore/recettes/pkg/recettes/keywords"
	"github.com/cognicore/recettes/pkg/recettes/prefs"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// DefaultLimit is how many recommendations are shown.
const DefaultLimit = 6

// Scorer ranks recipes against a user's preference histogram
type Scorer struct {
	extractor *keywords.Extractor
	limit     int
}

// NewScorer creates a scorer. A nil extractor uses keywords.Default();
// limit <= 0 uses DefaultLimit.
func NewScorer(extractor *keywords.Extractor, limit int) *Scorer {
	if extractor == nil {
		extractor = keywords.Default()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Scorer{extractor: extractor, limit: limit}
}

// Limit returns the maximum number of results Rank returns.
func (s *Scorer) Limit() int { return s.limit }

// Result is a ranked recipe
type Result struct {
	Recipe store.Recipe `json:"recipe"`
	Score  int64        `json:"score"`
}

// Score sums the histogram weights of the recipe's keywords.
//
// score = Σ h[k] for k in keywords(recipe.Ingredients)
func (s *Scorer) Score(recipe store.Recipe, h prefs.Histogram) int64 {
	return s.Explain(recipe, h).Total
}

// Breakdown shows which keywords produced a score
type Breakdown struct {
	Matched map[string]int64 `json:"matched"`
	Total   int64            `json:"total"`
}

// Explain scores a recipe and reports the contributing keywords.
func (s *Scorer) Explain(recipe store.Recipe, h prefs.Histogram) Breakdown {
	b := Breakdown{Matched: map[string]int64{}}
	if recipe.Ingredients == "" || len(h) == 0 {
		return b
	}

	for kw := range s.extractor.Extract(recipe.Ingredients) {
		if w, ok := h[kw]; ok && w != 0 {
			b.Matched[kw] = w
			b.Total += w
		}
	}
	return b
}

// Rank scores every candidate, drops those scoring zero or less, and returns
// the rest by descending score, truncated to the limit. Equal scores keep
// candidate order.
func (s *Scorer) Rank(candidates []store.Recipe, h prefs.Histogram) []Result {
	if len(candidates) == 0 || len(h) == 0 {
		return []Result{}
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if score := s.Score(c, h); score > 0 {
			results = append(results, Result{Recipe: c, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > s.limit {
		results = results[:s.limit]
	}
	return results
}
