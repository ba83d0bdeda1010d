package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tmajor9/relaybot/internal/domain"
)

// HandleReroll regenerates the response addressed by a platform message
// id: the trailing run of entries back through the last assistant entry
// is removed (transcript and rendered messages both) and the preceding
// user text is re-enqueued as a fresh text request. Refused, not queued,
// while the conversation has work queued or in flight.
func (d *Dispatcher) HandleReroll(ctx context.Context, messageID int, userID int64) {
	conv, ok := d.locate(messageID, userID, "reroll")
	if !ok {
		return
	}

	removed, err := d.store.TruncateToLast(conv.ID, domain.RoleAssistant)
	if err != nil {
		slog.Error("reroll truncate", "conversation", conv.ID, "error", err)
		return
	}
	if removed == nil {
		slog.Info("reroll refused: no assistant entry", "conversation", conv.ID)
		return
	}
	d.deleteRendered(ctx, conv.ChannelID, removed)

	snap, ok := d.store.Snapshot(conv.ID)
	if !ok {
		return
	}
	lastUser := snap.LastEntryWithRole(domain.RoleUser)
	if lastUser == nil {
		slog.Warn("reroll found no user entry to resubmit", "conversation", conv.ID)
		return
	}

	d.queue.Put(PendingRequest{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Payload:        lastUser.Content,
		Kind:           RequestText,
		EnqueuedAt:     time.Now(),
	})
	slog.Info("reroll enqueued", "conversation", conv.ID)
}

// HandleDelete removes the trailing exchange addressed by a platform
// message id: entries back through the last user entry, with no
// resubmission. Edit affordances move to whatever assistant entry is now
// trailing, if any.
func (d *Dispatcher) HandleDelete(ctx context.Context, messageID int, userID int64) {
	conv, ok := d.locate(messageID, userID, "delete")
	if !ok {
		return
	}

	removed, err := d.store.TruncateToLast(conv.ID, domain.RoleUser)
	if err != nil {
		slog.Error("delete truncate", "conversation", conv.ID, "error", err)
		return
	}
	if removed == nil {
		slog.Info("delete refused: no user entry", "conversation", conv.ID)
		return
	}
	d.deleteRendered(ctx, conv.ChannelID, removed)

	snap, ok := d.store.Snapshot(conv.ID)
	if !ok {
		return
	}
	if last := snap.LastEntry(); last != nil && last.Role == domain.RoleAssistant && len(last.MessageIDs) > 0 {
		d.addAffordances(ctx, conv.ChannelID, last.MessageIDs[len(last.MessageIDs)-1])
	}
	slog.Info("exchange deleted", "conversation", conv.ID)
}

// locate resolves the conversation addressed by a reaction and applies
// the owner and busy guards. Refusals are logged, never surfaced: a
// reaction has no error channel back to the user.
func (d *Dispatcher) locate(messageID int, userID int64, action string) (domain.Conversation, bool) {
	conv, ok := d.store.FindByMessageID(messageID)
	if !ok {
		slog.Info(action+" ignored: message not in any transcript", "message", messageID)
		return domain.Conversation{}, false
	}
	if conv.UserID != userID {
		slog.Info(action+" refused: not the conversation owner", "conversation", conv.ID, "user", userID)
		return domain.Conversation{}, false
	}
	if d.queue.Busy(conv.ID) {
		slog.Info(action+" refused: conversation busy", "conversation", conv.ID)
		return domain.Conversation{}, false
	}
	return conv, true
}

// deleteRendered removes the platform messages behind transcript
// entries. Best-effort UI cleanup: failures are logged and swallowed.
func (d *Dispatcher) deleteRendered(ctx context.Context, channelID int64, entries []domain.TranscriptEntry) {
	for _, entry := range entries {
		for _, id := range entry.MessageIDs {
			if err := d.transport.DeleteMessage(ctx, channelID, id); err != nil {
				slog.Warn("delete rendered message", "message", id, "error", err)
			}
		}
	}
}
