package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/tmajor9/relaybot/internal/domain"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	// Create the conversation record without queueing any work.
	err := h.dispatcher.Enqueue(ctx, msg.Chat.ID, msg.From.ID, "", domain.RoleUser, 0, true)
	if err != nil {
		slog.Error("start conversation", "chat", msg.Chat.ID, "error", err)
		return
	}

	name, char := h.settings.ActiveCharacter()
	greeting := "👋 Conversation started with " + char.Emoji + " " + name + ". Just send a message."
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   greeting,
	})
}

func (h *Handler) handleClear(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	var text string
	switch err := h.dispatcher.Clear(msg.Chat.ID, msg.From.ID); err {
	case nil:
		text = "🧹 Conversation cleared."
	case domain.ErrConversationBusy:
		text = "⏳ Cannot clear while requests are still in the queue."
	case domain.ErrNotOwner:
		text = "🚫 You can only clear conversations that you started."
	case domain.ErrConversationNotFound:
		text = "🤷 Nothing to clear."
	default:
		slog.Error("clear conversation", "chat", msg.Chat.ID, "error", err)
		text = "⚠️ Failed to clear the conversation."
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   text,
	})
}
