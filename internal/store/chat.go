package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
	"github.com/raed-saidi/FinX-sub000/internal/events"
)

// chatFallbackReply is appended when the assistant request fails, so
// the conversation never shows a broken state.
const chatFallbackReply = "Sorry, I'm having trouble responding right now. Please try again in a moment."

// SendChatMessage appends the user's message and a transient typing
// placeholder, sends the message, and replaces the placeholder with
// exactly one assistant message: the real reply, or a synthesized
// fallback when the request fails. Errors are never surfaced to the
// caller.
//
// Single occupancy of the placeholder is a calling convention: the UI
// disables the input while a send is in flight, so no two calls
// overlap.
func (s *Store) SendChatMessage(ctx context.Context, text string) ChatMessage {
	userMsg := ChatMessage{
		ID:        uuid.New().String(),
		Role:      "user",
		Content:   text,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.chat = append(s.chat, userMsg)
	s.trimChatLocked()
	s.persistChatLocked()
	s.chat = append(s.chat, ChatMessage{
		ID:        TypingMessageID,
		Role:      "assistant",
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	s.emit(events.ChatMessageAppended, map[string]interface{}{"role": "user"})

	content := chatFallbackReply
	reply, err := s.api.Chat(ctx, text)
	if err != nil {
		s.log.Warn().Err(err).Msg("Chat request failed, synthesizing fallback reply")
	} else if reply.Response != "" {
		content = reply.Response
	}

	assistantMsg := ChatMessage{
		ID:        uuid.New().String(),
		Role:      "assistant",
		Content:   content,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.removeTypingLocked()
	s.chat = append(s.chat, assistantMsg)
	s.trimChatLocked()
	s.persistChatLocked()
	s.mu.Unlock()

	s.emit(events.ChatMessageAppended, map[string]interface{}{"role": "assistant"})
	return assistantMsg
}

// removeTypingLocked drops the typing placeholder. Caller holds mu.
func (s *Store) removeTypingLocked() {
	filtered := s.chat[:0]
	for _, msg := range s.chat {
		if !msg.IsTyping() {
			filtered = append(filtered, msg)
		}
	}
	s.chat = filtered
}

// trimChatLocked caps the transcript to the most recent non-transient
// messages. Caller holds mu.
func (s *Store) trimChatLocked() {
	count := 0
	for _, msg := range s.chat {
		if !msg.IsTyping() {
			count++
		}
	}
	if count <= maxChatMessages {
		return
	}

	drop := count - maxChatMessages
	kept := make([]ChatMessage, 0, len(s.chat)-drop)
	for _, msg := range s.chat {
		if drop > 0 && !msg.IsTyping() {
			drop--
			continue
		}
		kept = append(kept, msg)
	}
	s.chat = kept
}

// persistChatLocked writes the non-transient transcript. Persistence
// failures are logged, never surfaced: losing a saved transcript must
// not break the conversation. Caller holds mu.
func (s *Store) persistChatLocked() {
	if s.persist == nil {
		return
	}
	durable := make([]ChatMessage, 0, len(s.chat))
	for _, msg := range s.chat {
		if !msg.IsTyping() {
			durable = append(durable, msg)
		}
	}
	if err := s.persist.SetJSON(clientstate.KeyChatMessages, durable); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist chat transcript")
	}
}
