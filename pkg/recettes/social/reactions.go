// Package social stores reactions and comments on recipes and reports the
// ones that count as preference signals.
package social

import (
	"context"
	"fmt"
	"time"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Emojis are the reactions a user can pick from.
var Emojis = []string{"👍", "❤️", "😍", "🔥", "😋"}

// Signaler receives the interactions that feed preferences;
// signals.Dispatcher implements it.
type Signaler interface {
	ReactionAdded(ctx context.Context, userID string, recipe store.Recipe)
	CommentPosted(ctx context.Context, userID string, recipe store.Recipe)
}

// Reaction is one user's reaction to a recipe.
type Reaction struct {
	Emoji     string `json:"emoji"`
	Timestamp int64  `json:"timestamp"`
}

// Reactions manages recettes/{id}/reactions.
type Reactions struct {
	store    store.Store
	signaler Signaler
	now      func() time.Time
}

// NewReactions creates a reactions service.
func NewReactions(st store.Store, sig Signaler) *Reactions {
	return &Reactions{store: st, signaler: sig, now: time.Now}
}

// Toggle sets userID's reaction on recipe to emoji. Choosing the emoji the
// user already has removes the reaction instead. It returns the user's
// reaction after the call, "" when removed. Only a newly set reaction is
// reported to the signaler.
func (r *Reactions) Toggle(ctx context.Context, recipe store.Recipe, userID, emoji string) (string, error) {
	if recipe.ID == "" || userID == "" {
		return "", fmt.Errorf("%w: recipe and user are required", internalerr.ErrInvalidInput)
	}
	if !validEmoji(emoji) {
		return "", fmt.Errorf("%w: unsupported reaction %q", internalerr.ErrInvalidInput, emoji)
	}

	path := store.ReactionPath(recipe.ID, userID)

	var current Reaction
	found, err := r.store.Read(ctx, path, &current)
	if err != nil {
		return "", err
	}

	if found && current.Emoji == emoji {
		if err := r.store.Delete(ctx, path); err != nil {
			return "", err
		}
		return "", nil
	}

	next := Reaction{Emoji: emoji, Timestamp: r.now().UnixMilli()}
	if err := r.store.Write(ctx, path, next); err != nil {
		return "", err
	}

	if r.signaler != nil {
		r.signaler.ReactionAdded(ctx, userID, recipe)
	}
	return emoji, nil
}

// Get returns userID's reaction on a recipe, "" when none.
func (r *Reactions) Get(ctx context.Context, recipeID, userID string) (string, error) {
	var current Reaction
	if _, err := r.store.Read(ctx, store.ReactionPath(recipeID, userID), &current); err != nil {
		return "", err
	}
	return current.Emoji, nil
}

// Counts returns how many users picked each emoji on a recipe.
func (r *Reactions) Counts(ctx context.Context, recipeID string) (map[string]int, error) {
	raw, err := r.store.List(ctx, store.ReactionsPath(recipeID))
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(Emojis))
	for _, data := range raw {
		var rc Reaction
		if err := store.Decode(data, &rc); err != nil {
			continue
		}
		if rc.Emoji != "" {
			counts[rc.Emoji]++
		}
	}
	return counts, nil
}

func validEmoji(e string) bool {
	for _, allowed := range Emojis {
		if e == allowed {
			return true
		}
	}
	return false
}
