// Package shopping keeps a per-user shopping list of saved recipes.
package shopping

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Entry is a recipe saved to a shopping list.
type Entry struct {
	Nom          string `json:"nom"`
	Ingredients  string `json:"ingredients"`
	Instructions string `json:"instructions"`
	Image        string `json:"image"`
	AddedAt      int64  `json:"addedAt"`
}

// List maps entry keys to entries.
type List map[string]Entry

// Service reads and writes shoppingList/{uid} as a whole.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a shopping list service.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Add saves a recipe to the user's list and returns its entry key. Without
// a user or ingredients nothing is saved and the key is empty.
func (s *Service) Add(ctx context.Context, uid string, recipe store.Recipe) (string, error) {
	if uid == "" || recipe.Ingredients == "" {
		return "", nil
	}

	list, err := s.Get(ctx, uid)
	if err != nil {
		return "", err
	}

	name := recipe.Nom
	if name == "" {
		name = "recette"
	}
	now := s.now()
	key := SanitizeKey(name) + "_" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	nom := recipe.Nom
	if nom == "" {
		nom = "Sans nom"
	}
	list[key] = Entry{
		Nom:          nom,
		Ingredients:  recipe.Ingredients,
		Instructions: recipe.Instructions,
		Image:        recipe.Image,
		AddedAt:      now.UnixMilli(),
	}

	if err := s.store.Write(ctx, store.ShoppingListPath(uid), list); err != nil {
		return "", fmt.Errorf("add to shopping list: %w", err)
	}
	return key, nil
}

// Get returns the user's list, empty when nothing was saved.
func (s *Service) Get(ctx context.Context, uid string) (List, error) {
	list := make(List)
	if uid == "" {
		return list, nil
	}
	if _, err := s.store.Read(ctx, store.ShoppingListPath(uid), &list); err != nil {
		return nil, fmt.Errorf("read shopping list: %w", err)
	}
	if list == nil {
		list = make(List)
	}
	return list, nil
}

// Remove deletes one entry. Removing a missing key is not an error.
func (s *Service) Remove(ctx context.Context, uid, key string) error {
	if uid == "" || key == "" {
		return nil
	}
	list, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}
	delete(list, key)
	if err := s.store.Write(ctx, store.ShoppingListPath(uid), list); err != nil {
		return fmt.Errorf("remove from shopping list: %w", err)
	}
	return nil
}

// Clear empties the user's list.
func (s *Service) Clear(ctx context.Context, uid string) error {
	if uid == "" {
		return nil
	}
	if err := s.store.Write(ctx, store.ShoppingListPath(uid), List{}); err != nil {
		return fmt.Errorf("clear shopping list: %w", err)
	}
	return nil
}

// Item is one ingredient with its total quantity.
type Item struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

var leadingQuantity = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(.+)$`)

// ParseIngredient splits a leading quantity from an ingredient line:
// "3 tomates" gives {tomates 3}, "1,5 litre lait" gives {litre lait 1.5},
// and a line without a number has quantity 1.
func ParseIngredient(line string) Item {
	cleaned := strings.ToLower(strings.TrimSpace(line))

	if m := leadingQuantity.FindStringSubmatch(cleaned); m != nil {
		q, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil {
			return Item{Name: strings.TrimSpace(m[2]), Quantity: q}
		}
	}
	return Item{Name: cleaned, Quantity: 1}
}

// Items flattens every entry's ingredients and sums quantities of
// identically named ingredients.
func Items(list List) []Item {
	totals := make(map[string]float64)
	for _, e := range list {
		for _, line := range splitIngredients(e.Ingredients) {
			if strings.TrimSpace(line) == "" {
				continue
			}
			it := ParseIngredient(line)
			totals[it.Name] += it.Quantity
		}
	}

	items := make([]Item, 0, len(totals))
	for name, q := range totals {
		items = append(items, Item{Name: name, Quantity: q})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// splitIngredients cuts an ingredient text on newlines, semicolons and
// commas. A comma between two digits is a decimal separator and is kept.
func splitIngredients(text string) []string {
	var (
		lines []string
		start int
	)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case ',':
			if i > 0 && i+1 < len(text) && isDigit(text[i-1]) && isDigit(text[i+1]) {
				continue
			}
		case ';', '\n':
		default:
			continue
		}
		lines = append(lines, text[start:i])
		start = i + 1
	}
	return append(lines, text[start:])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

var leadingArticles = []string{"de la ", "de l'", "des ", "du ", "de ", "d'"}

var forbiddenKeyChars = strings.NewReplacer(
	".", " ", "#", " ", "$", " ", "/", " ", "[", " ", "]", " ", "(", " ", ")", " ",
)

// SanitizeKey turns an ingredient or recipe name into a key the store
// accepts: lowercased, leading partitive article dropped, forbidden
// characters replaced and whitespace collapsed.
func SanitizeKey(name string) string {
	k := strings.ToLower(name)
	for _, art := range leadingArticles {
		if strings.HasPrefix(k, art) {
			k = strings.TrimLeft(k[len(art):], " ")
			break
		}
	}
	k = forbiddenKeyChars.Replace(k)
	return strings.Join(strings.Fields(k), " ")
}
