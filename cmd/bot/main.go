package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/tmajor9/relaybot/internal/backend"
	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/dispatch"
	"github.com/tmajor9/relaybot/internal/domain"
	"github.com/tmajor9/relaybot/internal/handler"
	"github.com/tmajor9/relaybot/internal/middleware"
	"github.com/tmajor9/relaybot/internal/resource"
	"github.com/tmajor9/relaybot/internal/settings"
	"github.com/tmajor9/relaybot/internal/store"
	"github.com/tmajor9/relaybot/internal/telegram"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Load the model settings record
	settingsMgr, err := settings.Load(cfg.SettingsFile, cfg.DefaultSettingsFile)
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Rehydrate conversations
	st := store.New(cfg.DataDir, cfg.MediaDir)
	if err := st.LoadAll(); err != nil {
		slog.Error("failed to load conversations", "error", err)
		os.Exit(1)
	}

	// Backend clients
	groq := backend.NewGroqClient(cfg.GroqAPIKey, cfg.GroqBaseURL)
	ollama := backend.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaBinary)
	sd := backend.NewSDWebUIClient(cfg.SDWebUIBaseURL)
	router := backend.NewRouter(groq, ollama, sd)

	// VRAM budget; eviction unloads server-resident models
	resources := resource.NewManager(cfg.VRAMCapacityGB, resource.UnloadFunc(func(ctx context.Context, name string) error {
		desc, err := settingsMgr.TextModel(name)
		if err != nil {
			return err
		}
		if desc.API != domain.APIKindOllama {
			// In-process models are freed when their client is closed.
			return nil
		}
		return ollama.Unload(ctx, desc.ModelName)
	}))

	// Handler pointer for use in default handler closure
	var h *handler.Handler

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
		),
		bot.WithAllowedUpdates(bot.AllowedUpdates{"message", "message_reaction"}),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			if update.MessageReaction != nil {
				h.HandleReaction(ctx, b, update)
			}
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	// Dispatcher core
	sender := telegram.NewSender(b, config.RerollEmoji, config.DeleteEmoji)
	dispatcher := dispatch.New(dispatch.Deps{
		Store:     st,
		Settings:  settingsMgr,
		Router:    router,
		Resources: resources,
		Transport: sender,
		Intent:    dispatch.NewIntentClassifier(groq, cfg.IntentModel),
	})

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:        b,
		Cfg:        cfg,
		Dispatcher: dispatcher,
		Store:      st,
		Settings:   settingsMgr,
	})
	h.Register()

	// Register default text handler for AI messages
	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		// Skip commands
		if len(update.Message.Text) > 0 && update.Message.Text[0] == '/' {
			return
		}
		h.HandleText(ctx, b, update)
	})

	// Start the single queue worker
	go dispatcher.Run(ctx)

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	slog.Info("bot stopped gracefully")
}
