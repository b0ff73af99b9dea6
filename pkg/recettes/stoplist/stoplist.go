// Package stoplist suggests ingredient stopwords from recipe corpus
// statistics. A keyword found in most recipes ("sel", "eau") adds weight to
// every histogram and separates nothing.
package stoplist

import (
	"math"
	"sort"

	"github.com/cognicore/recettes/pkg/recettes/keywords"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Analyzer aggregates keyword document frequency over recipes.
type Analyzer struct {
	extractor *keywords.Extractor
	total     int64
	df        map[string]int64
}

// NewAnalyzer creates an empty analyzer using extractor.
func NewAnalyzer(extractor *keywords.Extractor) *Analyzer {
	if extractor == nil {
		extractor = keywords.Default()
	}
	return &Analyzer{extractor: extractor, df: make(map[string]int64)}
}

// Process consumes one recipe.
func (a *Analyzer) Process(r store.Recipe) {
	a.total++
	for kw := range a.extractor.Extract(r.Ingredients) {
		a.df[kw]++
	}
}

// Total returns how many recipes were processed.
func (a *Analyzer) Total() int64 { return a.total }

// Stats holds the frequency statistics of one keyword
type Stats struct {
	Keyword   string  `json:"keyword"`
	DF        int64   `json:"df"`
	DFPercent float64 `json:"df_percent"`
	IDF       float64 `json:"idf"`
}

// Snapshot returns per-keyword statistics ordered by descending DF, ties
// alphabetically.
func (a *Analyzer) Snapshot() []Stats {
	out := make([]Stats, 0, len(a.df))
	if a.total == 0 {
		return out
	}
	for kw, df := range a.df {
		out = append(out, Stats{
			Keyword:   kw,
			DF:        df,
			DFPercent: 100 * float64(df) / float64(a.total),
			IDF:       math.Log(float64(a.total) / float64(df)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DF != out[j].DF {
			return out[i].DF > out[j].DF
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out
}

// Thresholds defines criteria for stopword identification
type Thresholds struct {
	DFPercent  float64 // e.g. 60: appears in more than 60% of recipes
	MinRecipes int64   // below this corpus size nothing is suggested
}

// DefaultThresholds returns sensible default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{DFPercent: 60, MinRecipes: 10}
}

// Candidate represents a candidate stopword
type Candidate struct {
	Stats
	Score float64 `json:"score"` // confidence in [0,1]
}

// Suggest returns keywords above the DF threshold, most frequent first.
// Zero threshold fields take their default.
func (a *Analyzer) Suggest(th Thresholds) []Candidate {
	def := DefaultThresholds()
	if th.DFPercent <= 0 {
		th.DFPercent = def.DFPercent
	}
	if th.MinRecipes <= 0 {
		th.MinRecipes = def.MinRecipes
	}

	candidates := []Candidate{}
	if a.total < th.MinRecipes {
		return candidates
	}
	for _, s := range a.Snapshot() {
		if s.DFPercent <= th.DFPercent {
			continue
		}
		// 0 at the threshold, 1 when the keyword is in every recipe.
		score := (s.DFPercent - th.DFPercent) / (100 - th.DFPercent)
		candidates = append(candidates, Candidate{Stats: s, Score: score})
	}
	return candidates
}

// Apply adds every candidate to the extractor's stopwords and returns the
// added keywords.
func Apply(extractor *keywords.Extractor, candidates []Candidate) []string {
	added := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if extractor.IsStopword(c.Keyword) {
			continue
		}
		extractor.AddStopword(c.Keyword)
		added = append(added, c.Keyword)
	}
	return added
}
