package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/recettes/pkg/recettes"
	"github.com/cognicore/recettes/pkg/recettes/store"
	"github.com/cognicore/recettes/pkg/recettes/store/memstore"
)

const testSecret = "test-secret"

// testContext stands in for testing.T.Context (Go 1.24+): the context is
// canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

type fixture struct {
	srv    *httptest.Server
	engine *recettes.Engine
	auth   *Authenticator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := recettes.New(recettes.Options{Store: memstore.New()})
	auth := NewAuthenticator(testSecret)
	srv := httptest.NewServer(NewServer(engine, auth, zerolog.Nop()).Router())
	t.Cleanup(func() {
		srv.Close()
		_ = engine.Close()
	})
	return &fixture{srv: srv, engine: engine, auth: auth}
}

func (f *fixture) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := f.auth.Issue(uid, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, uid string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(t, err)
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, uid))
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	for _, r := range []store.Recipe{
		{ID: "a", Nom: "Caprese", Ingredients: "tomates, basilic", AuthorID: "chef"},
		{ID: "b", Nom: "Curry", Ingredients: "poulet, curry", AuthorID: "chef"},
	} {
		_, err := f.engine.PutRecipe(testContext(t), r)
		require.NoError(t, err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestAuth(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/me/recommendations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/recipes", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	bad, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)

	other := NewAuthenticator("other-secret")
	tok, err := other.Issue("u1", time.Hour)
	require.NoError(t, err)
	_, err = f.auth.Validate(tok)
	assert.Error(t, err)

	expired, err := f.auth.Issue("u1", -time.Minute)
	require.NoError(t, err)
	_, err = f.auth.Validate(expired)
	assert.Error(t, err)

	uid, err := f.auth.Validate(f.token(t, "u1"))
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestRecipeLifecycle(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/recipes", "chef", map[string]string{
		"nom": "Ratatouille", "ingredients": "courgettes, aubergines",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created recipeJSON
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "chef", created.AuthorID)

	resp, body = f.do(t, http.MethodGet, "/recipes/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Ratatouille")

	resp, _ = f.do(t, http.MethodGet, "/recipes/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/recipes/"+created.ID, "intruder", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/recipes/"+created.ID, "chef", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/recipes", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestSignalsDriveRecommendations(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	resp, _ := f.do(t, http.MethodPost, "/recipes/a/views", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/recipes/b/reactions", "u1", reactionRequest{Emoji: "😋"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"emoji":"😋"}`, string(body))

	resp, body = f.do(t, http.MethodGet, "/recipes/b/reactions", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"counts":{"😋":1},"mine":"😋"}`, string(body))

	resp, body = f.do(t, http.MethodGet, "/me/recommendations", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []recommendationJSON
	require.NoError(t, json.Unmarshal(body, &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].Recipe.ID)
	assert.Equal(t, int64(4), recs[0].Score)
	assert.Equal(t, "a", recs[1].Recipe.ID)
	assert.Equal(t, int64(2), recs[1].Score)

	resp, body = f.do(t, http.MethodGet, "/me/preferences", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p preferencesResponse
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, int64(2), p.Histogram["curry"])
	assert.Equal(t, "curry", p.Top[0].Keyword)
}

func TestAnonymousViewIsServedWithoutSignal(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	resp, _ := f.do(t, http.MethodPost, "/recipes/a/views", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/recipes/zzz/views", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	resp, _ := f.do(t, http.MethodPost, "/recipes/a/comments", "u1", commentRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/recipes/a/comments", "u1", commentRequest{Text: "Parfait"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var c commentJSON
	require.NoError(t, json.Unmarshal(body, &c))

	resp, body = f.do(t, http.MethodGet, "/recipes/a/comments", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Parfait")

	resp, _ = f.do(t, http.MethodDelete, "/recipes/a/comments/"+c.ID, "u2", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, "/recipes/a/comments/"+c.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestShoppingList(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	resp, _ := f.do(t, http.MethodPost, "/me/shopping-list", "u1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/me/shopping-list", "u1", addToShoppingListRequest{RecipeID: "a"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var added map[string]string
	require.NoError(t, json.Unmarshal(body, &added))
	assert.True(t, strings.HasPrefix(added["key"], "caprese_"))

	resp, body = f.do(t, http.MethodGet, "/me/shopping-list", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list shoppingListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Entries, 1)
	assert.Len(t, list.Items, 2)

	resp, _ = f.do(t, http.MethodDelete, "/me/shopping-list/"+added["key"], "u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, "/me/shopping-list", "u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestPreferencesStream(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/me/preferences/stream?access_token=" + f.token(t, "u1")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first preferencesResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Empty(t, first.Histogram)

	resp, _ := f.do(t, http.MethodPost, "/recipes/a/views", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var next preferencesResponse
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, int64(1), next.Histogram["tomates"])
	assert.Equal(t, int64(1), next.Histogram["basilic"])
}

func TestPreferencesStreamSlowReader(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/me/preferences/stream?access_token=" + f.token(t, "u1")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The client reads nothing while views are recorded.
	const views = 200
	done := make(chan error, 1)
	ctx := testContext(t)
	go func() {
		for i := 0; i < views; i++ {
			if _, err := f.engine.ViewRecipe(ctx, "a", "u1"); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("views blocked on the stream writer")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg preferencesResponse
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Histogram["tomates"] == views {
			break
		}
	}
}

func TestLatestKeepsNewest(t *testing.T) {
	l := newLatest()
	for i := int64(1); i <= 100; i++ {
		l.offer(map[string]int64{"sel": i})
	}
	l.seed(map[string]int64{"sel": 0})

	got := <-l.ch
	assert.Equal(t, int64(100), got["sel"])
	select {
	case extra := <-l.ch:
		t.Fatalf("unexpected pending histogram %v", extra)
	default:
	}
}

func TestLatestSeedsWhenIdle(t *testing.T) {
	l := newLatest()
	l.seed(map[string]int64{"sel": 3})
	assert.Equal(t, int64(3), (<-l.ch)["sel"])
}

func TestFollowRoutes(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPut, "/me/following/chef", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/me/following/chef", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state followResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.Following)

	resp, body = f.do(t, http.MethodGet, "/users/chef/followers", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users usersResponse
	require.NoError(t, json.Unmarshal(body, &users))
	assert.Equal(t, []string{"u1"}, users.Users)

	resp, _ = f.do(t, http.MethodPut, "/me/following/u1", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/me/following/chef", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/me/following/chef", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = f.do(t, http.MethodGet, "/users/u1/following", "", nil)
	require.NoError(t, json.Unmarshal(body, &users))
	assert.Empty(t, users.Users)
}

func TestChatRoutes(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/me/chats", "bob", map[string]string{
		"recipientId": "alice", "recipientName": "Alice", "recipeId": "a",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chat chatJSON
	require.NoError(t, json.Unmarshal(body, &chat))
	assert.Equal(t, "alice_bob", chat.ID)

	resp, _ = f.do(t, http.MethodPost, "/me/chats/alice_bob/messages", "alice", map[string]string{"text": "Bonjour"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/me/chats/alice_bob/messages", "eve", map[string]string{"text": "psst"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/me/chats/alice_bob/messages", "bob", map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/me/chats/alice_bob/messages", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs []messageJSON
	require.NoError(t, json.Unmarshal(body, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "Bonjour", msgs[0].Text)
	assert.NotEmpty(t, msgs[0].ID)

	resp, body = f.do(t, http.MethodGet, "/me/chats", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chats []map[string]any
	require.NoError(t, json.Unmarshal(body, &chats))
	require.Len(t, chats, 1)
	assert.Equal(t, "alice_bob", chats[0]["chatId"])
	assert.Equal(t, "alice", chats[0]["otherUserId"])
}
