package agent

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ConversationSnapshot is the serializable state of a Conversation.
type ConversationSnapshot struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Messages  []Message  `json:"messages"`
	Usage     TokenUsage `json:"usage"`
	MaxTokens int        `json:"max_tokens"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ConversationStore persists conversation snapshots. Implementations live
// in the session package.
type ConversationStore interface {
	Save(ctx context.Context, snap *ConversationSnapshot) error
	Load(ctx context.Context, id string) (*ConversationSnapshot, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*ConversationSnapshot, error)
}

// Snapshot captures the conversation state for persistence.
func (c *Conversation) Snapshot() *ConversationSnapshot {
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return &ConversationSnapshot{
		ID:        c.ID,
		Title:     c.Title,
		Messages:  msgs,
		Usage:     c.usage,
		MaxTokens: c.cfg.MaxTokens,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
}

// RestoreConversation rebuilds a conversation from a snapshot. The snapshot
// history is validated on load; orphaned tool results are dropped.
func RestoreConversation(snap *ConversationSnapshot, cfg ConversationConfig, logger *zap.Logger) *Conversation {
	c := NewConversation(cfg, logger)
	c.ID = snap.ID
	c.Title = snap.Title
	if snap.MaxTokens > 0 {
		c.cfg.MaxTokens = snap.MaxTokens
	}
	c.createdAt = snap.CreatedAt
	c.updatedAt = snap.UpdatedAt
	c.usage = snap.Usage
	c.messages, _ = ValidateSequence(snap.Messages)
	c.recount()
	return c
}
