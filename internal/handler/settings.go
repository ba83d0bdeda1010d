package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/tmajor9/relaybot/internal/domain"
)

// handleSettings shows the current settings record.
func (h *Handler) handleSettings(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	rec := h.settings.Snapshot()

	var sb strings.Builder
	fmt.Fprintf(&sb, "⚙️ Current settings\n")
	fmt.Fprintf(&sb, "model_text: %s %s\n", rec.ModelText.Value, choiceList(rec.ModelText.Choices))
	fmt.Fprintf(&sb, "model_img: %s %s\n", rec.ModelImg.Value, choiceList(rec.ModelImg.Choices))
	fmt.Fprintf(&sb, "temperature: %.2f\n", rec.Temperature.Value)
	fmt.Fprintf(&sb, "max_tokens: %d\n", rec.MaxTokens.Value)
	fmt.Fprintf(&sb, "character: %s\n", rec.Character.Value)
	fmt.Fprintf(&sb, "\nChange with /set <key> <value>")

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   sb.String(),
	})
}

// handleSet mutates one settings field: /set <key> <value>. Admin-only,
// serialized through the advisory settings session.
func (h *Handler) handleSet(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	if !h.cfg.IsAdmin(msg.From.ID) {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "🚫 Settings are admin-only."})
		return
	}

	if err := h.settings.TryBeginSession(msg.From.ID); err != nil {
		if errors.Is(err, domain.ErrSettingsBusy) {
			b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "⏳ Someone else is changing settings right now."})
		}
		return
	}
	defer h.settings.EndSession(msg.From.ID)

	fields := strings.Fields(msg.Text)
	if len(fields) != 3 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "Usage: /set <key> <value>"})
		return
	}
	key, value := fields[1], fields[2]

	var err error
	switch key {
	case "model_text":
		err = h.settings.SetTextModel(value)
	case "model_img":
		err = h.settings.SetImageModel(value)
	case "temperature":
		var v float64
		if v, err = strconv.ParseFloat(value, 64); err == nil {
			err = h.settings.SetTemperature(v)
		}
	case "max_tokens":
		var v int
		if v, err = strconv.Atoi(value); err == nil {
			err = h.settings.SetMaxTokens(v)
		}
	case "character":
		if err = h.settings.SetCharacter(value); err == nil {
			h.applyCharacter(chatID, msg.From.ID, value)
		}
	default:
		err = fmt.Errorf("unknown key %q", key)
	}
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "⚠️ " + err.Error()})
		return
	}

	if err := h.settings.Save(); err != nil {
		slog.Error("save settings", "error", err)
	}
	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "✅ " + key + " set to " + value})
}

// applyCharacter replaces the system entry of the caller's live
// conversation so the switch takes effect immediately.
func (h *Handler) applyCharacter(chatID, userID int64, name string) {
	char, ok := h.settings.Character(name)
	if !ok {
		return
	}
	id := domain.ConversationID(chatID, userID)
	if !h.store.Has(id) {
		return
	}
	if err := h.store.SetCharacter(id, name, char.SystemPrompt); err != nil {
		slog.Error("apply character to conversation", "conversation", id, "error", err)
	}
}

func choiceList[V any](choices map[string]V) string {
	if len(choices) == 0 {
		return ""
	}
	names := make([]string, 0, len(choices))
	for name := range choices {
		names = append(names, name)
	}
	sort.Strings(names)
	return "(" + strings.Join(names, ", ") + ")"
}
