// Package signals turns user interactions with recipes into weighted
// preference updates. Updates are best effort: failures are logged and
// counted, never returned to the caller.
package signals

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cognicore/recettes/internal/metrics"
	"github.com/cognicore/recettes/pkg/recettes/keywords"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Kind names an interaction type
type Kind string

// Interaction kinds
const (
	View     Kind = "view"
	Reaction Kind = "reaction"
	Comment  Kind = "comment"
)

// Weights is the per-interaction weight policy
type Weights struct {
	View     int `yaml:"view"`
	Reaction int `yaml:"reaction"`
	Comment  int `yaml:"comment"`
}

// DefaultWeights returns view=1, reaction=2, comment=3.
func DefaultWeights() Weights {
	return Weights{View: 1, Reaction: 2, Comment: 3}
}

// For returns the weight of an interaction kind.
func (w Weights) For(k Kind) int {
	switch k {
	case View:
		return w.View
	case Reaction:
		return w.Reaction
	case Comment:
		return w.Comment
	}
	return 0
}

// Updater persists weighted keyword observations; prefs.Accumulator
// implements it.
type Updater interface {
	Update(ctx context.Context, userID string, kws keywords.Set, weight int) error
}

// Dispatcher feeds interactions into an Updater
type Dispatcher struct {
	updater   Updater
	extractor *keywords.Extractor
	weights   Weights
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher. A nil extractor uses keywords.Default().
func NewDispatcher(u Updater, extractor *keywords.Extractor, w Weights, logger zerolog.Logger) *Dispatcher {
	if extractor == nil {
		extractor = keywords.Default()
	}
	return &Dispatcher{updater: u, extractor: extractor, weights: w, logger: logger}
}

// Weights returns the dispatcher's weight policy.
func (d *Dispatcher) Weights() Weights { return d.weights }

// RecipeViewed records a recipe detail view. Anonymous viewers and the
// recipe's own author are ignored.
func (d *Dispatcher) RecipeViewed(ctx context.Context, viewerID string, recipe store.Recipe) {
	if viewerID != "" && viewerID == recipe.AuthorID {
		metrics.SignalsTotal.WithLabelValues(string(View), metrics.OutcomeSkipped).Inc()
		return
	}
	d.dispatch(ctx, View, viewerID, recipe)
}

// ReactionAdded records an emoji reaction being set. Removing a reaction
// is not a signal.
func (d *Dispatcher) ReactionAdded(ctx context.Context, userID string, recipe store.Recipe) {
	d.dispatch(ctx, Reaction, userID, recipe)
}

// CommentPosted records a new comment.
func (d *Dispatcher) CommentPosted(ctx context.Context, userID string, recipe store.Recipe) {
	d.dispatch(ctx, Comment, userID, recipe)
}

func (d *Dispatcher) dispatch(ctx context.Context, kind Kind, userID string, recipe store.Recipe) {
	if userID == "" || recipe.Ingredients == "" {
		metrics.SignalsTotal.WithLabelValues(string(kind), metrics.OutcomeSkipped).Inc()
		return
	}

	kws := d.extractor.Extract(recipe.Ingredients)
	weight := d.weights.For(kind)

	if err := d.updater.Update(ctx, userID, kws, weight); err != nil {
		metrics.SignalsTotal.WithLabelValues(string(kind), metrics.OutcomeFailed).Inc()
		d.logger.Error().
			Err(err).
			Str("kind", string(kind)).
			Str("user", userID).
			Str("recipe", recipe.ID).
			Int("weight", weight).
			Int("keywords", kws.Len()).
			Msg("preference update failed")
		return
	}

	metrics.SignalsTotal.WithLabelValues(string(kind), metrics.OutcomeApplied).Inc()
	d.logger.Debug().
		Str("kind", string(kind)).
		Str("user", userID).
		Str("recipe", recipe.ID).
		Int("weight", weight).
		Int("keywords", kws.Len()).
		Msg("preferences updated")
}
