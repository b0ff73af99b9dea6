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

// Chat is the header of a two-party conversation stored at
// privateChats/{chatId}. Participants maps user ids to display names.
type Chat struct {
	ID           string            `json:"-"`
	Participants map[string]string `json:"participants"`
	RecipeID     string            `json:"recipeId"`
	RecipeName   string            `json:"recipeName"`
	CreatedAt    int64             `json:"createdAt"`
}

// Message is one message in a chat.
type Message struct {
	ID         string `json:"-"`
	Text       string `json:"text"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Timestamp  int64  `json:"timestamp"`
}

// ChatSummary is a chat as listed for one of its participants.
type ChatSummary struct {
	Chat
	ChatID      string   `json:"chatId"`
	OtherUserID string   `json:"otherUserId"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}

// OpenRequest starts a conversation between UserID and RecipientID,
// optionally about a recipe.
type OpenRequest struct {
	UserID        string
	UserName      string
	RecipientID   string
	RecipientName string
	RecipeID      string
	RecipeName    string
}

// Messages manages privateChats.
type Messages struct {
	store store.Store
	now   func() time.Time
}

// NewMessages creates a private messaging service.
func NewMessages(st store.Store) *Messages {
	return &Messages{store: st, now: time.Now}
}

// ChatID is the same for both orderings of a pair of users.
func ChatID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// Open returns the chat between the two users, creating it on first
// contact. An existing chat keeps its original recipe reference.
func (m *Messages) Open(ctx context.Context, req OpenRequest) (Chat, error) {
	if req.UserID == "" || req.RecipientID == "" {
		return Chat{}, fmt.Errorf("%w: user and recipient are required", internalerr.ErrInvalidInput)
	}
	if req.UserID == req.RecipientID {
		return Chat{}, fmt.Errorf("%w: cannot message yourself", internalerr.ErrInvalidInput)
	}

	id := ChatID(req.UserID, req.RecipientID)
	chat, found, err := m.chat(ctx, id)
	if err != nil {
		return Chat{}, err
	}
	if found {
		return chat, nil
	}

	chat = Chat{
		ID: id,
		Participants: map[string]string{
			req.UserID:      req.UserName,
			req.RecipientID: req.RecipientName,
		},
		RecipeID:   req.RecipeID,
		RecipeName: req.RecipeName,
		CreatedAt:  m.now().UnixMilli(),
	}
	if err := m.store.Write(ctx, store.ChatPath(id), chat); err != nil {
		return Chat{}, fmt.Errorf("open chat: %w", err)
	}
	return chat, nil
}

func (m *Messages) chat(ctx context.Context, id string) (Chat, bool, error) {
	var chat Chat
	found, err := m.store.Read(ctx, store.ChatPath(id), &chat)
	if err != nil || !found {
		return Chat{}, found, err
	}
	chat.ID = id
	return chat, true, nil
}

// participantChat loads a chat uid takes part in.
func (m *Messages) participantChat(ctx context.Context, chatID, uid string) (Chat, error) {
	chat, found, err := m.chat(ctx, chatID)
	if err != nil {
		return Chat{}, err
	}
	if !found {
		return Chat{}, fmt.Errorf("chat %s: %w", chatID, internalerr.ErrNotFound)
	}
	if _, ok := chat.Participants[uid]; !ok || uid == "" {
		return Chat{}, fmt.Errorf("chat %s: %w", chatID, internalerr.ErrForbidden)
	}
	return chat, nil
}

// Send appends a message from senderID. Blank text is rejected and only
// participants may write.
func (m *Messages) Send(ctx context.Context, chatID, senderID, senderName, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("%w: empty message", internalerr.ErrInvalidInput)
	}
	chat, err := m.participantChat(ctx, chatID, senderID)
	if err != nil {
		return Message{}, err
	}
	if senderName == "" {
		senderName = chat.Participants[senderID]
	}

	now := m.now()
	msg := Message{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Text:       text,
		SenderID:   senderID,
		SenderName: senderName,
		Timestamp:  now.UnixMilli(),
	}
	if err := m.store.Write(ctx, store.Join(store.ChatMessagesPath(chatID), msg.ID), msg); err != nil {
		return Message{}, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// History returns a chat's messages oldest first.
func (m *Messages) History(ctx context.Context, chatID, uid string) ([]Message, error) {
	if _, err := m.participantChat(ctx, chatID, uid); err != nil {
		return nil, err
	}
	return m.messages(ctx, chatID)
}

func (m *Messages) messages(ctx context.Context, chatID string) ([]Message, error) {
	raw, err := m.store.List(ctx, store.ChatMessagesPath(chatID))
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(raw))
	for id, data := range raw {
		var msg Message
		if err := store.Decode(data, &msg); err != nil {
			continue
		}
		msg.ID = id
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

// Chats lists uid's conversations, most recently active first. Activity is
// the last message's timestamp, or the creation time of a silent chat.
func (m *Messages) Chats(ctx context.Context, uid string) ([]ChatSummary, error) {
	if uid == "" {
		return []ChatSummary{}, nil
	}
	raw, err := m.store.List(ctx, store.PrivateChatsRoot)
	if err != nil {
		return nil, err
	}

	chats := make([]ChatSummary, 0)
	for id, data := range raw {
		var chat Chat
		if err := store.Decode(data, &chat); err != nil {
			continue
		}
		if _, ok := chat.Participants[uid]; !ok {
			continue
		}
		chat.ID = id

		summary := ChatSummary{Chat: chat, ChatID: id}
		for other := range chat.Participants {
			if other != uid {
				summary.OtherUserID = other
			}
		}
		msgs, err := m.messages(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			summary.LastMessage = &last
		}
		chats = append(chats, summary)
	}

	sort.Slice(chats, func(i, j int) bool {
		ai, aj := chats[i].activity(), chats[j].activity()
		if ai != aj {
			return ai > aj
		}
		return chats[i].ID < chats[j].ID
	})
	return chats, nil
}

func (c ChatSummary) activity() int64 {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}

// Watch calls fn with each message written to the chat after the
// subscription starts. Only participants may watch.
func (m *Messages) Watch(ctx context.Context, chatID, uid string, fn func(Message)) (func(), error) {
	if _, err := m.participantChat(ctx, chatID, uid); err != nil {
		return nil, err
	}
	prefix := store.ChatMessagesPath(chatID)
	return m.store.Subscribe(ctx, prefix, func(ev store.Event) {
		if ev.Deleted {
			return
		}
		id, ok := store.ChildName(prefix, ev.Path)
		if !ok {
			return
		}
		var msg Message
		if err := store.Decode(ev.Value, &msg); err != nil {
			return
		}
		msg.ID = id
		fn(msg)
	})
}
