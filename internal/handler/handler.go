// Package handler wires Telegram updates into the dispatcher: plain
// text becomes queued work, reactions on bot messages become reroll and
// delete edits, commands manage the conversation and settings.
package handler

import (
	"github.com/go-telegram/bot"
	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/dispatch"
	"github.com/tmajor9/relaybot/internal/settings"
	"github.com/tmajor9/relaybot/internal/store"
)

// Handler holds all dependencies needed by command and reaction handlers.
type Handler struct {
	bot        *bot.Bot
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	store      *store.Store
	settings   *settings.Manager
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot        *bot.Bot
	Cfg        *config.Config
	Dispatcher *dispatch.Dispatcher
	Store      *store.Store
	Settings   *settings.Manager
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:        deps.Bot,
		cfg:        deps.Cfg,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		settings:   deps.Settings,
	}
}

// Register attaches all command handlers.
func (h *Handler) Register() {
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/clear", bot.MatchTypeExact, h.handleClear)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/settings", bot.MatchTypeExact, h.handleSettings)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/set", bot.MatchTypePrefix, h.handleSet)
}
