package config

import (
	"fmt"

	"github.com/cognicore/recettes/pkg/recettes/keywords"
	"github.com/cognicore/recettes/pkg/recettes/rank"
	"github.com/cognicore/recettes/pkg/recettes/signals"
)

// Loader loads the tuning file and constructs components
type Loader struct {
	TuningPath string
}

// Components holds all configured engine components
type Components struct {
	Extractor       *keywords.Extractor
	Weights         signals.Weights
	Limit           int
	AtomicIncrement bool
}

// Load reads the tuning file, when set, and returns components with
// defaults filled for every missing key.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{
		Weights: signals.DefaultWeights(),
		Limit:   rank.DefaultLimit,
	}

	tuning := &Tuning{}
	if l.TuningPath != "" {
		t, err := LoadTuning(l.TuningPath)
		if err != nil {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		tuning = t
	}

	stopwords := keywords.DefaultStopwords
	if tuning.Stopwords != nil {
		stopwords = tuning.Stopwords
	}
	units := keywords.DefaultUnits
	if tuning.Units != nil {
		units = tuning.Units
	}
	comp.Extractor = keywords.NewExtractor(stopwords, units)

	if w := tuning.Weights.View; w > 0 {
		comp.Weights.View = w
	}
	if w := tuning.Weights.Reaction; w > 0 {
		comp.Weights.Reaction = w
	}
	if w := tuning.Weights.Comment; w > 0 {
		comp.Weights.Comment = w
	}

	if tuning.Recommendations.Limit > 0 {
		comp.Limit = tuning.Recommendations.Limit
	}
	comp.AtomicIncrement = tuning.Preferences.AtomicIncrement

	return comp, nil
}
