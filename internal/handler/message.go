package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
)

// HandleText feeds an ordinary chat message into the dispatcher queue.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || strings.HasPrefix(msg.Text, "/") {
		return
	}

	err := h.dispatcher.Enqueue(ctx, msg.Chat.ID, msg.From.ID, msg.Text, domain.RoleUser, msg.ID, false)
	if err != nil {
		slog.Error("enqueue message", "chat", msg.Chat.ID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   "⚠️ Could not accept your message, please try again.",
		})
	}
}

// HandleReaction routes reroll/delete reactions on bot messages to the
// edit handlers.
func (h *Handler) HandleReaction(ctx context.Context, b *bot.Bot, update *models.Update) {
	reaction := update.MessageReaction
	if reaction == nil || reaction.User == nil {
		return
	}

	for _, r := range reaction.NewReaction {
		if r.ReactionTypeEmoji == nil {
			continue
		}
		switch r.ReactionTypeEmoji.Emoji {
		case config.RerollEmoji:
			h.dispatcher.HandleReroll(ctx, reaction.MessageID, reaction.User.ID)
		case config.DeleteEmoji:
			h.dispatcher.HandleDelete(ctx, reaction.MessageID, reaction.User.ID)
		}
	}
}
