package store

import (
	"time"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
)

// TypingMessageID is the reserved id of the transient "assistant is
// typing" placeholder. At most one such message exists at a time and
// it is never persisted.
const TypingMessageID = "typing-indicator"

// maxChatMessages caps the persisted transcript to the most recent
// non-transient messages.
const maxChatMessages = 50

// ChatMessage is one entry in the chat transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// IsTyping reports whether the message is the transient typing
// placeholder.
func (m ChatMessage) IsTyping() bool {
	return m.ID == TypingMessageID
}

// Session holds the authenticated identity. A zero Session is
// anonymous.
type Session struct {
	Token string
	User  *backend.User
}

// Authenticated reports whether the session carries a full identity.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// LoadingState carries one flag per independently fetched resource.
// The flags are deliberately not aggregated: a slow backtest fetch
// must not put a spinner over the portfolio view.
type LoadingState struct {
	Portfolio       bool
	BotStatus       bool
	Recommendations bool
	Backtest        bool
	Chart           bool
}

// ConnectionState mirrors the push channel for UI badges.
type ConnectionState struct {
	Connected   bool
	LastMessage *backend.PushMessage
}
