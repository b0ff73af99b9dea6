package social

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Comment is a comment on a recipe.
type Comment struct {
	ID        string `json:"-"`
	Text      string `json:"text"`
	AuthorID  string `json:"authorId"`
	Timestamp int64  `json:"timestamp"`
}

// Comments manages recettes/{id}/comments.
type Comments struct {
	store    store.Store
	signaler Signaler
	now      func() time.Time
}

// NewComments creates a comments service.
func NewComments(st store.Store, sig Signaler) *Comments {
	return &Comments{store: st, signaler: sig, now: time.Now}
}

// Post adds a comment by userID. Blank text is rejected.
func (c *Comments) Post(ctx context.Context, recipe store.Recipe, userID, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if recipe.ID == "" || userID == "" {
		return Comment{}, fmt.Errorf("%w: recipe and user are required", internalerr.ErrInvalidInput)
	}
	if text == "" {
		return Comment{}, fmt.Errorf("%w: empty comment", internalerr.ErrInvalidInput)
	}

	now := c.now()
	comment := Comment{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Text:      text,
		AuthorID:  userID,
		Timestamp: now.UnixMilli(),
	}
	if err := c.store.Write(ctx, store.CommentPath(recipe.ID, comment.ID), comment); err != nil {
		return Comment{}, err
	}

	if c.signaler != nil {
		c.signaler.CommentPosted(ctx, userID, recipe)
	}
	return comment, nil
}

// List returns a recipe's comments oldest first.
func (c *Comments) List(ctx context.Context, recipeID string) ([]Comment, error) {
	raw, err := c.store.List(ctx, store.CommentsPath(recipeID))
	if err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, len(raw))
	for id, data := range raw {
		var cm Comment
		if err := store.Decode(data, &cm); err != nil {
			continue
		}
		cm.ID = id
		comments = append(comments, cm)
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].Timestamp != comments[j].Timestamp {
			return comments[i].Timestamp < comments[j].Timestamp
		}
		return comments[i].ID < comments[j].ID
	})
	return comments, nil
}

// Delete removes a comment. Only its author may delete it. Preferences
// gained from posting it are kept.
func (c *Comments) Delete(ctx context.Context, recipeID, commentID, userID string) error {
	path := store.CommentPath(recipeID, commentID)

	var cm Comment
	found, err := c.store.Read(ctx, path, &cm)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("comment %s: %w", commentID, internalerr.ErrNotFound)
	}
	if userID == "" || cm.AuthorID != userID {
		return fmt.Errorf("comment %s: %w", commentID, internalerr.ErrForbidden)
	}
	return c.store.Delete(ctx, path)
}
