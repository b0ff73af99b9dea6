package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cognicore/recettes/pkg/recettes/social"
)

type followResponse struct {
	Following bool `json:"following"`
}

type usersResponse struct {
	Users []string `json:"users"`
}

func (s *Server) followers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.Follows().Followers(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}

func (s *Server) following(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.Follows().Following(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}

func (s *Server) isFollowing(w http.ResponseWriter, r *http.Request) {
	ok, err := s.engine.Follows().IsFollowing(r.Context(), UserID(r.Context()), chi.URLParam(r, "target"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, followResponse{Following: ok})
}

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Follows().Follow(r.Context(), UserID(r.Context()), chi.URLParam(r, "target")); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, followResponse{Following: true})
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Follows().Unfollow(r.Context(), UserID(r.Context()), chi.URLParam(r, "target")); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, followResponse{Following: false})
}

type openChatRequest struct {
	UserName      string `json:"userName"`
	RecipientID   string `json:"recipientId"`
	RecipientName string `json:"recipientName"`
	RecipeID      string `json:"recipeId"`
	RecipeName    string `json:"recipeName"`
}

type chatJSON struct {
	ID string `json:"id"`
	social.Chat
}

type messageJSON struct {
	ID string `json:"id"`
	social.Message
}

type sendMessageRequest struct {
	Text       string `json:"text"`
	SenderName string `json:"senderName"`
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.engine.Messages().Chats(r.Context(), UserID(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) openChat(w http.ResponseWriter, r *http.Request) {
	var req openChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat body")
		return
	}
	chat, err := s.engine.Messages().Open(r.Context(), social.OpenRequest{
		UserID:        UserID(r.Context()),
		UserName:      req.UserName,
		RecipientID:   req.RecipientID,
		RecipientName: req.RecipientName,
		RecipeID:      req.RecipeID,
		RecipeName:    req.RecipeName,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatJSON{ID: chat.ID, Chat: chat})
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.engine.Messages().History(r.Context(), chi.URLParam(r, "chatID"), UserID(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON{ID: m.ID, Message: m})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message body")
		return
	}
	msg, err := s.engine.Messages().Send(r.Context(),
		chi.URLParam(r, "chatID"), UserID(r.Context()), req.SenderName, req.Text)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageJSON{ID: msg.ID, Message: msg})
}
