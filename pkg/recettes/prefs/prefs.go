// Package prefs accumulates per-user keyword histograms from interaction
// signals.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cognicore/recettes/pkg/recettes/keywords"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Histogram maps a keyword to its accumulated weight.
type Histogram map[string]int64

// Entry is one keyword and its weight.
type Entry struct {
	Keyword string `json:"keyword"`
	Weight  int64  `json:"weight"`
}

// Top returns the n heaviest keywords, ties broken alphabetically.
// n <= 0 returns all of them.
func (h Histogram) Top(n int) []Entry {
	entries := make([]Entry, 0, len(h))
	for k, w := range h {
		entries = append(entries, Entry{Keyword: k, Weight: w})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight > entries[j].Weight
		}
		return entries[i].Keyword < entries[j].Keyword
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Accumulator merges weighted keyword observations into the histogram
// stored at users/{uid}/preferences.
type Accumulator struct {
	store  store.Store
	atomic bool
	logger zerolog.Logger
}

// Option configures an Accumulator
type Option func(*Accumulator)

// WithAtomicIncrement switches updates to store.Incrementer when the store
// supports it, closing the lost-update window between concurrent sessions.
func WithAtomicIncrement(enabled bool) Option {
	return func(a *Accumulator) { a.atomic = enabled }
}

// WithLogger sets the accumulator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Accumulator) { a.logger = l }
}

// NewAccumulator creates an accumulator over st.
func NewAccumulator(st store.Store, opts ...Option) *Accumulator {
	a := &Accumulator{store: st, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load reads a user's histogram. A user with no history gets an empty one.
func (a *Accumulator) Load(ctx context.Context, userID string) (Histogram, error) {
	h := make(Histogram)
	if userID == "" {
		return h, nil
	}
	if _, err := a.store.Read(ctx, store.PreferencesPath(userID), &h); err != nil {
		return nil, fmt.Errorf("load preferences for %s: %w", userID, err)
	}
	if h == nil {
		h = make(Histogram)
	}
	return h, nil
}

// Update adds weight to every keyword in kws for userID and persists the
// whole histogram. It does nothing when userID is empty, kws is empty or
// weight is not positive, so weights never decrease.
//
// Without atomic increments this is an unguarded read-modify-write: two
// sessions of the same user updating at once can lose one increment.
func (a *Accumulator) Update(ctx context.Context, userID string, kws keywords.Set, weight int) error {
	if userID == "" || kws.Len() == 0 || weight <= 0 {
		return nil
	}
	path := store.PreferencesPath(userID)

	if a.atomic {
		if inc, ok := a.store.(store.Incrementer); ok {
			deltas := make(map[string]int64, kws.Len())
			for kw := range kws {
				deltas[kw] = int64(weight)
			}
			if err := inc.IncrementFields(ctx, path, deltas); err != nil {
				return fmt.Errorf("increment preferences for %s: %w", userID, err)
			}
			return nil
		}
		a.logger.Debug().Msg("store has no atomic increment, using read-modify-write")
	}

	h, err := a.Load(ctx, userID)
	if err != nil {
		return err
	}
	for kw := range kws {
		h[kw] += int64(weight)
	}
	if err := a.store.Write(ctx, path, h); err != nil {
		return fmt.Errorf("save preferences for %s: %w", userID, err)
	}
	return nil
}

// Watch calls fn with the user's full histogram each time it changes.
func (a *Accumulator) Watch(ctx context.Context, userID string, fn func(Histogram)) (func(), error) {
	if userID == "" {
		return nil, errors.New("watch preferences: empty user id")
	}
	return a.store.Subscribe(ctx, store.PreferencesPath(userID), func(ev store.Event) {
		h := make(Histogram)
		if !ev.Deleted {
			if err := store.Decode(ev.Value, &h); err != nil {
				a.logger.Warn().Err(err).Str("user", userID).Msg("undecodable preferences change")
				return
			}
		}
		fn(h)
	})
}
