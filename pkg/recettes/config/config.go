package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/keywords"
)

// Tuning is the optional YAML tuning file.
type Tuning struct {
	Stopwords       []string        `yaml:"stopwords,omitempty"`
	Units           []string        `yaml:"units,omitempty"`
	Weights         WeightsConfig   `yaml:"weights,omitempty"`
	Recommendations Recommendations `yaml:"recommendations,omitempty"`
	Preferences     Preferences     `yaml:"preferences,omitempty"`
}

// WeightsConfig holds signal weights; zero means "use the default".
type WeightsConfig struct {
	View     int `yaml:"view,omitempty"`
	Reaction int `yaml:"reaction,omitempty"`
	Comment  int `yaml:"comment,omitempty"`
}

// Recommendations tunes the scorer.
type Recommendations struct {
	Limit int `yaml:"limit,omitempty"`
}

// Preferences tunes the accumulator.
type Preferences struct {
	AtomicIncrement bool `yaml:"atomic_increment,omitempty"`
}

// LoadTuning loads a tuning file from a YAML file
func LoadTuning(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", internalerr.ErrInvalidConfig, path, err)
	}

	if t.Weights.View < 0 || t.Weights.Reaction < 0 || t.Weights.Comment < 0 {
		return nil, fmt.Errorf("%w: weights must not be negative", internalerr.ErrInvalidConfig)
	}
	if t.Recommendations.Limit < 0 {
		return nil, fmt.Errorf("%w: recommendations.limit must not be negative", internalerr.ErrInvalidConfig)
	}

	return &t, nil
}

// AddStopwords appends words to the stopword list of the tuning file at
// path, creating the file when it does not exist. A file without a
// stopword list starts from the default list, which it would otherwise
// replace. Words already listed are skipped. It returns the words added.
func AddStopwords(path string, words []string) ([]string, error) {
	t, err := LoadTuning(path)
	if errors.Is(err, fs.ErrNotExist) {
		t, err = &Tuning{}, nil
	}
	if err != nil {
		return nil, err
	}

	if t.Stopwords == nil {
		t.Stopwords = slices.Clone(keywords.DefaultStopwords)
	}

	added := []string{}
	for _, w := range words {
		if w == "" || slices.Contains(t.Stopwords, w) {
			continue
		}
		t.Stopwords = append(t.Stopwords, w)
		added = append(added, w)
	}
	if len(added) == 0 {
		return added, nil
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return added, nil
}
