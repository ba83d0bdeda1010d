package domain

import (
	"fmt"
	"slices"
)

// Transcript entry roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Transcript entry types beyond plain text.
const (
	EntryTypeCharacter = "character" // the character's system entry at position 0
	EntryTypeImage     = "image"     // assistant entry backing a delivered image
)

// TranscriptEntry is a single message in a conversation transcript.
type TranscriptEntry struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	MessageIDs []int  `json:"message_ids"`
	Type       string `json:"type,omitempty"`
}

// Conversation is one durable chat between a user and the bot.
// The first transcript entry is always the active character's system entry.
type Conversation struct {
	ID          string            `json:"-"`
	ChannelID   int64             `json:"channel_id"`
	UserID      int64             `json:"user_id"`
	Timestamp   string            `json:"timestamp"`
	ModelText   string            `json:"model_text"`
	ModelImg    string            `json:"model_img"`
	Character   string            `json:"character"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Messages    []TranscriptEntry `json:"messages"`
}

// ConversationID derives the stable conversation key for a channel/user pair.
func ConversationID(channelID, userID int64) string {
	return fmt.Sprintf("%d_%d", channelID, userID)
}

// LastEntry returns the trailing transcript entry, or nil if the
// transcript is empty.
func (c *Conversation) LastEntry() *TranscriptEntry {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// LastEntryWithRole returns the trailing entry with the given role,
// or nil if none exists.
func (c *Conversation) LastEntryWithRole(role string) *TranscriptEntry {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == role {
			return &c.Messages[i]
		}
	}
	return nil
}

// References reports whether any entry in the transcript was rendered
// as the given platform message.
func (c *Conversation) References(messageID int) bool {
	for _, m := range c.Messages {
		if slices.Contains(m.MessageIDs, messageID) {
			return true
		}
	}
	return false
}
