// Package recettes wires the keyword extractor, preference accumulator,
// scorer and signal dispatch over a single store.
package recettes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/cognicore/recettes/internal/metrics"
	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/keywords"
	"github.com/cognicore/recettes/pkg/recettes/prefs"
	"github.com/cognicore/recettes/pkg/recettes/rank"
	"github.com/cognicore/recettes/pkg/recettes/shopping"
	"github.com/cognicore/recettes/pkg/recettes/signals"
	"github.com/cognicore/recettes/pkg/recettes/social"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Engine is the recommendation engine facade
type Engine struct {
	store     store.Store
	extractor *keywords.Extractor
	prefs     *prefs.Accumulator
	scorer    *rank.Scorer
	signals   *signals.Dispatcher
	reactions *social.Reactions
	comments  *social.Comments
	follows   *social.Follows
	messages  *social.Messages
	shopping  *shopping.Service
	logger    zerolog.Logger
	now       func() time.Time
}

// Options configures an Engine instance
type Options struct {
	Store           store.Store
	Extractor       *keywords.Extractor
	Weights         signals.Weights
	Limit           int
	AtomicIncrement bool
	Logger          *zerolog.Logger
}

// New creates an Engine with the given dependencies. A nil extractor uses
// the default lists and zero weights use the default policy.
func New(opts Options) *Engine {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = keywords.Default()
	}
	weights := opts.Weights
	if weights == (signals.Weights{}) {
		weights = signals.DefaultWeights()
	}

	acc := prefs.NewAccumulator(opts.Store,
		prefs.WithAtomicIncrement(opts.AtomicIncrement),
		prefs.WithLogger(logger.With().Str("component", "prefs").Logger()),
	)
	dispatcher := signals.NewDispatcher(acc, extractor, weights,
		logger.With().Str("component", "signals").Logger())

	return &Engine{
		store:     opts.Store,
		extractor: extractor,
		prefs:     acc,
		scorer:    rank.NewScorer(extractor, opts.Limit),
		signals:   dispatcher,
		reactions: social.NewReactions(opts.Store, dispatcher),
		comments:  social.NewComments(opts.Store, dispatcher),
		follows:   social.NewFollows(opts.Store),
		messages:  social.NewMessages(opts.Store),
		shopping:  shopping.NewService(opts.Store),
		logger:    logger,
		now:       time.Now,
	}
}

// Close cleanly shuts down the engine and its store
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Signals returns the signal dispatcher.
func (e *Engine) Signals() *signals.Dispatcher { return e.signals }

// Preferences returns the preference accumulator.
func (e *Engine) Preferences() *prefs.Accumulator { return e.prefs }

// Reactions returns the reactions service.
func (e *Engine) Reactions() *social.Reactions { return e.reactions }

// Comments returns the comments service.
func (e *Engine) Comments() *social.Comments { return e.comments }

// Follows returns the follow graph service.
func (e *Engine) Follows() *social.Follows { return e.follows }

// Messages returns the private messaging service.
func (e *Engine) Messages() *social.Messages { return e.messages }

// Shopping returns the shopping list service.
func (e *Engine) Shopping() *shopping.Service { return e.shopping }

// Scorer returns the recommendation scorer.
func (e *Engine) Scorer() *rank.Scorer { return e.scorer }

// Extractor returns the keyword extractor shared by scoring and signals.
func (e *Engine) Extractor() *keywords.Extractor { return e.extractor }

// Keywords extracts the keyword set of an ingredient text.
func (e *Engine) Keywords(text string) keywords.Set {
	return e.extractor.Extract(text)
}

// Recipe reads one recipe. The boolean is false when it does not exist.
func (e *Engine) Recipe(ctx context.Context, id string) (store.Recipe, bool, error) {
	var r store.Recipe
	if id == "" {
		return r, false, nil
	}
	found, err := e.store.Read(ctx, store.RecipePath(id), &r)
	if err != nil || !found {
		return store.Recipe{}, false, err
	}
	r.ID = id
	return r, true, nil
}

// Recipes returns every recipe ordered by ID, which for generated IDs is
// creation order. Entries that do not decode are skipped.
func (e *Engine) Recipes(ctx context.Context) ([]store.Recipe, error) {
	raw, err := e.store.List(ctx, store.RecipesRoot)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}

	recipes := make([]store.Recipe, 0, len(raw))
	for id, data := range raw {
		var r store.Recipe
		if err := store.Decode(data, &r); err != nil {
			e.logger.Warn().Err(err).Str("recipe", id).Msg("skipping undecodable recipe")
			continue
		}
		r.ID = id
		recipes = append(recipes, r)
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })
	return recipes, nil
}

// PutRecipe stores a recipe, assigning an ID and creation time when they
// are missing, and returns the stored recipe.
func (e *Engine) PutRecipe(ctx context.Context, r store.Recipe) (store.Recipe, error) {
	now := e.now()
	if r.ID == "" {
		r.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = now.UnixMilli()
	}
	if err := e.store.Write(ctx, store.RecipePath(r.ID), r); err != nil {
		return store.Recipe{}, fmt.Errorf("put recipe %s: %w", r.ID, err)
	}
	return r, nil
}

// DeleteRecipe removes a recipe with its reactions and comments. Only the
// recipe's author may delete it.
func (e *Engine) DeleteRecipe(ctx context.Context, id, userID string) error {
	r, found, err := e.Recipe(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("recipe %s: %w", id, internalerr.ErrNotFound)
	}
	if userID == "" || r.AuthorID != userID {
		return fmt.Errorf("delete recipe %s: %w", id, internalerr.ErrForbidden)
	}
	return e.store.Delete(ctx, store.RecipePath(id))
}

// ViewRecipe loads a recipe and records the view for userID.
func (e *Engine) ViewRecipe(ctx context.Context, id, userID string) (store.Recipe, error) {
	r, found, err := e.Recipe(ctx, id)
	if err != nil {
		return store.Recipe{}, err
	}
	if !found {
		return store.Recipe{}, fmt.Errorf("recipe %s: %w", id, internalerr.ErrNotFound)
	}
	e.signals.RecipeViewed(ctx, userID, r)
	return r, nil
}

// Recommend ranks every recipe against the user's histogram. Anonymous
// users and users without history get an empty result.
func (e *Engine) Recommend(ctx context.Context, userID string) ([]rank.Result, error) {
	if userID == "" {
		metrics.RecommendationsTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return []rank.Result{}, nil
	}

	start := time.Now()
	defer func() { metrics.RecommendationDuration.Observe(time.Since(start).Seconds()) }()

	h, err := e.prefs.Load(ctx, userID)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}
	if len(h) == 0 {
		metrics.RecommendationsTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return []rank.Result{}, nil
	}

	recipes, err := e.Recipes(ctx)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	results := e.scorer.Rank(recipes, h)
	metrics.RecommendationsTotal.WithLabelValues(metrics.OutcomeApplied).Inc()
	e.logger.Debug().
		Str("user", userID).
		Int("candidates", len(recipes)).
		Int("results", len(results)).
		Msg("ranked recommendations")
	return results, nil
}
