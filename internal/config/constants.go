package config

import "time"

const (
	// Outbound delivery chunking
	ChunkSize = 1900

	// Backend call timeout
	RequestTimeout = 90 * time.Second

	// Local chat server management
	ServerWarmup   = 3 * time.Second
	PullRetryDelay = 2 * time.Second

	// Generation parameter bounds
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 8192

	// Generation defaults
	DefaultTemperature = 1.0
	DefaultMaxTokens   = 1024
	DefaultTopP        = 1.0

	// Embedded inference context window
	LlamaContextSize = 2048

	// Advisory settings-session expiry
	SettingsSessionTimeout = 10 * time.Minute

	// Generated media filenames
	MediaTimeFormat = "20060102_150405"
)

// Edit affordance emojis attached to delivered assistant messages.
const (
	RerollEmoji = "🔄"
	DeleteEmoji = "🗑"
)

// ImageTriggerWords are the substrings that make a message a candidate
// for image-intent confirmation.
var ImageTriggerWords = []string{
	"draw", "picture", "image", "sketch", "paint", "photo", "selfie",
}
