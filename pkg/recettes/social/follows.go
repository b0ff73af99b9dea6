package social

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

type followEdge struct {
	Timestamp int64 `json:"timestamp"`
}

// Follows keeps both directions of the follow graph: users/{uid}/following
// and users/{uid}/followers.
type Follows struct {
	store store.Store
	now   func() time.Time
}

// NewFollows creates a follows service.
func NewFollows(st store.Store) *Follows {
	return &Follows{store: st, now: time.Now}
}

func checkPair(uid, target string) error {
	if uid == "" || target == "" {
		return fmt.Errorf("%w: user and target are required", internalerr.ErrInvalidInput)
	}
	if uid == target {
		return fmt.Errorf("%w: cannot follow yourself", internalerr.ErrInvalidInput)
	}
	return nil
}

// Follow makes uid follow target. Following again refreshes the timestamp.
func (f *Follows) Follow(ctx context.Context, uid, target string) error {
	if err := checkPair(uid, target); err != nil {
		return err
	}
	edge := followEdge{Timestamp: f.now().UnixMilli()}
	if err := f.store.Write(ctx, store.Join(store.FollowingPath(uid), target), edge); err != nil {
		return fmt.Errorf("follow %s: %w", target, err)
	}
	if err := f.store.Write(ctx, store.Join(store.FollowersPath(target), uid), edge); err != nil {
		return fmt.Errorf("follow %s: %w", target, err)
	}
	return nil
}

// Unfollow removes both edges. Unfollowing someone not followed is not an
// error.
func (f *Follows) Unfollow(ctx context.Context, uid, target string) error {
	if err := checkPair(uid, target); err != nil {
		return err
	}
	if err := f.store.Delete(ctx, store.Join(store.FollowingPath(uid), target)); err != nil {
		return fmt.Errorf("unfollow %s: %w", target, err)
	}
	if err := f.store.Delete(ctx, store.Join(store.FollowersPath(target), uid)); err != nil {
		return fmt.Errorf("unfollow %s: %w", target, err)
	}
	return nil
}

// IsFollowing reports whether uid follows target.
func (f *Follows) IsFollowing(ctx context.Context, uid, target string) (bool, error) {
	if uid == "" || target == "" || uid == target {
		return false, nil
	}
	return f.store.Read(ctx, store.Join(store.FollowingPath(uid), target), nil)
}

// Following lists the users uid follows, sorted.
func (f *Follows) Following(ctx context.Context, uid string) ([]string, error) {
	return f.members(ctx, uid, store.FollowingPath)
}

// Followers lists the users following uid, sorted.
func (f *Follows) Followers(ctx context.Context, uid string) ([]string, error) {
	return f.members(ctx, uid, store.FollowersPath)
}

func (f *Follows) members(ctx context.Context, uid string, path func(string) string) ([]string, error) {
	if uid == "" {
		return []string{}, nil
	}
	raw, err := f.store.List(ctx, path(uid))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
