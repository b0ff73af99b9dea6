package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
	"github.com/cognicore/recettes/pkg/recettes/prefs"
	"github.com/cognicore/recettes/pkg/recettes/shopping"
	"github.com/cognicore/recettes/pkg/recettes/social"
	"github.com/cognicore/recettes/pkg/recettes/store"
)

type recipeJSON struct {
	ID string `json:"id"`
	store.Recipe
}

type recommendationJSON struct {
	Recipe recipeJSON `json:"recipe"`
	Score  int64      `json:"score"`
}

type commentJSON struct {
	ID string `json:"id"`
	social.Comment
}

func toRecipeJSON(r store.Recipe) recipeJSON {
	return recipeJSON{ID: r.ID, Recipe: r}
}

func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.engine.Recipes(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]recipeJSON, len(recipes))
	for i, rec := range recipes {
		out[i] = toRecipeJSON(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createRecipe(w http.ResponseWriter, r *http.Request) {
	var rec store.Recipe
	if err := decodeBody(r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid recipe body")
		return
	}
	rec.ID = ""
	rec.AuthorID = UserID(r.Context())

	saved, err := s.engine.PutRecipe(r.Context(), rec)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecipeJSON(saved))
}

func (s *Server) loadRecipe(w http.ResponseWriter, r *http.Request) (store.Recipe, bool) {
	id := chi.URLParam(r, "id")
	rec, found, err := s.engine.Recipe(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return store.Recipe{}, false
	}
	if !found {
		writeFailure(w, fmt.Errorf("recipe %s: %w", id, internalerr.ErrNotFound))
		return store.Recipe{}, false
	}
	return rec, true
}

func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecipe(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRecipeJSON(rec))
}

func (s *Server) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteRecipe(r.Context(), chi.URLParam(r, "id"), UserID(r.Context())); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) viewRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.ViewRecipe(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipeJSON(rec))
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

type reactionsResponse struct {
	Counts map[string]int `json:"counts"`
	Mine   string         `json:"mine,omitempty"`
}

func (s *Server) listReactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	counts, err := s.engine.Reactions().Counts(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := reactionsResponse{Counts: counts}
	if uid := UserID(r.Context()); uid != "" {
		if resp.Mine, err = s.engine.Reactions().Get(r.Context(), id, uid); err != nil {
			writeFailure(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) toggleReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid reaction body")
		return
	}
	rec, ok := s.loadRecipe(w, r)
	if !ok {
		return
	}

	current, err := s.engine.Reactions().Toggle(r.Context(), rec, UserID(r.Context()), req.Emoji)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reactionRequest{Emoji: current})
}

type commentRequest struct {
	Text string `json:"text"`
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.engine.Comments().List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]commentJSON, len(comments))
	for i, c := range comments {
		out[i] = commentJSON{ID: c.ID, Comment: c}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) postComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid comment body")
		return
	}
	rec, ok := s.loadRecipe(w, r)
	if !ok {
		return
	}

	c, err := s.engine.Comments().Post(r.Context(), rec, UserID(r.Context()), req.Text)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentJSON{ID: c.ID, Comment: c})
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Comments().Delete(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "commentID"), UserID(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.Recommend(r.Context(), UserID(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]recommendationJSON, len(results))
	for i, res := range results {
		out[i] = recommendationJSON{Recipe: toRecipeJSON(res.Recipe), Score: res.Score}
	}
	writeJSON(w, http.StatusOK, out)
}

type preferencesResponse struct {
	Histogram prefs.Histogram `json:"histogram"`
	Top       []prefs.Entry   `json:"top"`
}

func (s *Server) preferences(w http.ResponseWriter, r *http.Request) {
	h, err := s.engine.Preferences().Load(r.Context(), UserID(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{Histogram: h, Top: h.Top(10)})
}

type shoppingListResponse struct {
	Entries shopping.List   `json:"entries"`
	Items   []shopping.Item `json:"items"`
}

type addToShoppingListRequest struct {
	RecipeID string `json:"recipeId"`
}

func (s *Server) shoppingList(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Shopping().Get(r.Context(), UserID(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shoppingListResponse{Entries: list, Items: shopping.Items(list)})
}

func (s *Server) addToShoppingList(w http.ResponseWriter, r *http.Request) {
	var req addToShoppingListRequest
	if err := decodeBody(r, &req); err != nil || req.RecipeID == "" {
		writeError(w, http.StatusBadRequest, "recipeId is required")
		return
	}
	rec, found, err := s.engine.Recipe(r.Context(), req.RecipeID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !found {
		writeFailure(w, fmt.Errorf("recipe %s: %w", req.RecipeID, internalerr.ErrNotFound))
		return
	}

	key, err := s.engine.Shopping().Add(r.Context(), UserID(r.Context()), rec)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if key == "" {
		writeError(w, http.StatusUnprocessableEntity, "recipe has no ingredients")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) clearShoppingList(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Shopping().Clear(r.Context(), UserID(r.Context())); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeFromShoppingList(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Shopping().Remove(r.Context(), UserID(r.Context()), chi.URLParam(r, "key")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
