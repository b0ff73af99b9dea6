package store

import (
	"fmt"
	"strings"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
)

// Collection roots
const (
	RecipesRoot      = "recettes"
	UsersRoot        = "users"
	ShoppingListRoot = "shoppingList"
	PrivateChatsRoot = "privateChats"
)

// PreferencesPath is where a user's keyword histogram lives.
func PreferencesPath(uid string) string {
	return Join(UsersRoot, uid, "preferences")
}

// RecipePath addresses one recipe.
func RecipePath(id string) string {
	return Join(RecipesRoot, id)
}

// ReactionsPath holds one reaction per user for a recipe.
func ReactionsPath(recipeID string) string {
	return Join(RecipesRoot, recipeID, "reactions")
}

// ReactionPath addresses a single user's reaction.
func ReactionPath(recipeID, uid string) string {
	return Join(ReactionsPath(recipeID), uid)
}

// CommentsPath holds the comments on a recipe.
func CommentsPath(recipeID string) string {
	return Join(RecipesRoot, recipeID, "comments")
}

// CommentPath addresses one comment.
func CommentPath(recipeID, commentID string) string {
	return Join(CommentsPath(recipeID), commentID)
}

// ShoppingListPath is a user's shopping list.
func ShoppingListPath(uid string) string {
	return Join(ShoppingListRoot, uid)
}

// FollowingPath holds the users uid follows.
func FollowingPath(uid string) string {
	return Join(UsersRoot, uid, "following")
}

// FollowersPath holds the users following uid.
func FollowersPath(uid string) string {
	return Join(UsersRoot, uid, "followers")
}

// ChatPath addresses a private chat header.
func ChatPath(chatID string) string {
	return Join(PrivateChatsRoot, chatID)
}

// ChatMessagesPath holds a private chat's messages.
func ChatMessagesPath(chatID string) string {
	return Join(PrivateChatsRoot, chatID, "messages")
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidatePath rejects paths the store cannot address: empty paths, empty
// segments, and segments containing . # $ [ ].
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", internalerr.ErrInvalidPath)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return fmt.Errorf("%w: empty segment in %q", internalerr.ErrInvalidPath, path)
		}
		if strings.ContainsAny(seg, ".#$[]") {
			return fmt.Errorf("%w: forbidden character in %q", internalerr.ErrInvalidPath, path)
		}
	}
	return nil
}

// Covers reports whether a change at changed is visible to a subscriber of
// watched, i.e. changed equals watched or lies below it.
func Covers(watched, changed string) bool {
	return changed == watched || strings.HasPrefix(changed, watched+"/")
}

// ChildName returns the direct child of prefix that key belongs to, and
// false when key is not strictly below prefix or is deeper than one level.
func ChildName(prefix, key string) (string, bool) {
	if !strings.HasPrefix(key, prefix+"/") {
		return "", false
	}
	rest := key[len(prefix)+1:]
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
