// Package httpapi exposes the recommendation engine over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cognicore/recettes/pkg/recettes"
)

// Server serves the engine's HTTP API.
type Server struct {
	engine   *recettes.Engine
	auth     *Authenticator
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a server for engine authenticated with auth.
func NewServer(engine *recettes.Engine, auth *Authenticator, logger zerolog.Logger) *Server {
	return &Server{
		engine: engine,
		auth:   auth,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", s.listRecipes)
			r.With(requireUser).Post("/", s.createRecipe)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getRecipe)
				r.With(requireUser).Delete("/", s.deleteRecipe)
				r.Post("/views", s.viewRecipe)

				r.Get("/reactions", s.listReactions)
				r.With(requireUser).Post("/reactions", s.toggleReaction)

				r.Get("/comments", s.listComments)
				r.With(requireUser).Post("/comments", s.postComment)
				r.With(requireUser).Delete("/comments/{commentID}", s.deleteComment)
			})
		})

		r.Get("/users/{uid}/followers", s.followers)
		r.Get("/users/{uid}/following", s.following)

		r.Route("/me", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/recommendations", s.recommendations)
			r.Get("/preferences", s.preferences)
			r.Get("/preferences/stream", s.preferencesStream)

			r.Get("/shopping-list", s.shoppingList)
			r.Post("/shopping-list", s.addToShoppingList)
			r.Delete("/shopping-list", s.clearShoppingList)
			r.Delete("/shopping-list/{key}", s.removeFromShoppingList)

			r.Get("/following/{target}", s.isFollowing)
			r.Put("/following/{target}", s.follow)
			r.Delete("/following/{target}", s.unfollow)

			r.Get("/chats", s.listChats)
			r.Post("/chats", s.openChat)
			r.Get("/chats/{chatID}/messages", s.chatHistory)
			r.Post("/chats/{chatID}/messages", s.sendMessage)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
