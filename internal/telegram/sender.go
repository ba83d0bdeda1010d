// Package telegram adapts the dispatcher's outbound interface to the
// Telegram Bot API. The core never imports the bot library directly;
// everything crosses this boundary.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Sender implements dispatch.Transport over a Telegram bot. Edit
// affordances are rendered as the bot's own reactions on the delivered
// message.
type Sender struct {
	bot         *bot.Bot
	rerollEmoji string
	deleteEmoji string
}

func NewSender(b *bot.Bot, rerollEmoji, deleteEmoji string) *Sender {
	return &Sender{bot: b, rerollEmoji: rerollEmoji, deleteEmoji: deleteEmoji}
}

// Send delivers one text part, falling back to plain text when
// Telegram rejects the markdown.
func (s *Sender) Send(ctx context.Context, channelID int64, text string) (int, error) {
	params := &bot.SendMessageParams{
		ChatID:    channelID,
		Text:      FixMarkdown(text),
		ParseMode: models.ParseModeMarkdownV1,
	}
	msg, err := s.bot.SendMessage(ctx, params)
	if err != nil {
		slog.Warn("markdown send failed, falling back to plain text", "error", err)
		params.ParseMode = ""
		params.Text = text
		msg, err = s.bot.SendMessage(ctx, params)
		if err != nil {
			return 0, fmt.Errorf("send message: %w", err)
		}
	}
	return msg.ID, nil
}

// SendPhoto uploads a local image file as a photo attachment.
func (s *Sender) SendPhoto(ctx context.Context, channelID int64, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	msg, err := s.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: channelID,
		Photo: &models.InputFileUpload{
			Filename: filepath.Base(path),
			Data:     f,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("send photo: %w", err)
	}
	return msg.ID, nil
}

// AddEditAffordances reacts to the message with the reroll and delete
// emojis.
func (s *Sender) AddEditAffordances(ctx context.Context, channelID int64, messageID int) error {
	return s.setReactions(ctx, channelID, messageID, []string{s.rerollEmoji, s.deleteEmoji})
}

// RemoveEditAffordances clears the bot's reactions from the message.
func (s *Sender) RemoveEditAffordances(ctx context.Context, channelID int64, messageID int) error {
	return s.setReactions(ctx, channelID, messageID, nil)
}

func (s *Sender) setReactions(ctx context.Context, channelID int64, messageID int, emojis []string) error {
	reactions := make([]models.ReactionType, 0, len(emojis))
	for _, emoji := range emojis {
		reactions = append(reactions, models.ReactionType{
			Type: models.ReactionTypeTypeEmoji,
			ReactionTypeEmoji: &models.ReactionTypeEmoji{
				Type:  models.ReactionTypeTypeEmoji,
				Emoji: emoji,
			},
		})
	}
	_, err := s.bot.SetMessageReaction(ctx, &bot.SetMessageReactionParams{
		ChatID:    channelID,
		MessageID: messageID,
		Reaction:  reactions,
	})
	if err != nil {
		return fmt.Errorf("set message reaction: %w", err)
	}
	return nil
}

// DeleteMessage removes a delivered message.
func (s *Sender) DeleteMessage(ctx context.Context, channelID int64, messageID int) error {
	_, err := s.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    channelID,
		MessageID: messageID,
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
