package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken   string `env:"BOT_TOKEN,required"`
	GroqAPIKey string `env:"GROQ_API_KEY,required"`

	// Backend endpoints
	GroqBaseURL    string `env:"GROQ_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	OllamaBaseURL  string `env:"OLLAMA_BASE_URL" envDefault:"http://127.0.0.1:11434"`
	OllamaBinary   string `env:"OLLAMA_BINARY" envDefault:"ollama"`
	SDWebUIBaseURL string `env:"SD_WEBUI_BASE_URL" envDefault:"http://127.0.0.1:7860"`

	// Local resource budget
	VRAMCapacityGB float64 `env:"VRAM_CAPACITY_GB" envDefault:"8"`

	// Fast model used for image-intent confirmation and prompt rewriting
	IntentModel string `env:"INTENT_MODEL" envDefault:"llama-3.1-8b-instant"`

	// Storage
	DataDir             string `env:"DATA_DIR" envDefault:"./data/conversations"`
	MediaDir            string `env:"MEDIA_DIR" envDefault:"./data/media"`
	SettingsFile        string `env:"SETTINGS_FILE" envDefault:"./data/user_settings.json"`
	DefaultSettingsFile string `env:"DEFAULT_SETTINGS_FILE" envDefault:"./data/default_settings.json"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
