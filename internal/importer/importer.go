// Package importer loads recipes from JSON Lines files.
package importer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/net/html"

	"github.com/cognicore/recettes/internal/logging"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Record is one line of an import file.
type Record struct {
	ID           string `json:"id"`
	Nom          string `json:"nom"`
	Ingredients  string `json:"ingredients"`
	Instructions string `json:"instructions"`
	Image        string `json:"image"`
	AuthorID     string `json:"authorId"`
	AuthorName   string `json:"authorName"`
	CreatedAt    int64  `json:"createdAt"`
}

// Recipe converts the record, stripping markup from its text fields.
func (r Record) Recipe() store.Recipe {
	return store.Recipe{
		ID:           r.ID,
		Nom:          StripHTML(r.Nom),
		Ingredients:  StripHTML(r.Ingredients),
		Instructions: StripHTML(r.Instructions),
		Image:        strings.TrimSpace(r.Image),
		AuthorID:     r.AuthorID,
		AuthorName:   r.AuthorName,
		CreatedAt:    r.CreatedAt,
	}
}

// LoadFromJSONL loads recipes from a JSONL file. Malformed lines are
// logged and skipped.
func LoadFromJSONL(path string) ([]store.Recipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var recipes []store.Recipe
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			logging.Warn().Err(err).Str("file", path).Int("line", line).Msg("skipping malformed recipe")
			continue
		}
		recipes = append(recipes, rec.Recipe())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(recipes) == 0 {
		return nil, fmt.Errorf("no valid recipes found in %s", path)
	}
	return recipes, nil
}

// Putter stores a recipe; recettes.Engine implements it.
type Putter interface {
	PutRecipe(ctx context.Context, r store.Recipe) (store.Recipe, error)
}

// Import stores every recipe and returns how many were written. It stops
// at the first store error.
func Import(ctx context.Context, dst Putter, recipes []store.Recipe) (int, error) {
	n := 0
	for _, r := range recipes {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := dst.PutRecipe(ctx, r); err != nil {
			return n, fmt.Errorf("import %q: %w", r.Nom, err)
		}
		n++
	}
	return n, nil
}

var blockElements = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "ul": true, "ol": true,
	"tr": true, "h1": true, "h2": true, "h3": true, "h4": true,
}

// StripHTML returns the text content of s. Block elements become line
// breaks so list items stay separate ingredient phrases. Text without
// markup is returned trimmed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidyLines(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

func tidyLines(s string) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
