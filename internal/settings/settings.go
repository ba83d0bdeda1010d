package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
)

// ModelChoice is one configurable model slot: the selected logical name
// plus the descriptors it may resolve to.
type ModelChoice struct {
	Value   string                            `json:"value"`
	Choices map[string]domain.ModelDescriptor `json:"choices"`
}

type FloatValue struct {
	Value float64 `json:"value"`
}

type IntValue struct {
	Value int `json:"value"`
}

// Character is a persona the bot can speak as. Messages are optional
// seed entries appended after the system entry on conversation creation.
type Character struct {
	SystemPrompt string                   `json:"system_prompt"`
	Messages     []domain.TranscriptEntry `json:"messages"`
	Emoji        string                   `json:"emoji"`
	Description  string                   `json:"description"`
}

// Record is the on-disk model settings record.
type Record struct {
	ModelText   ModelChoice          `json:"model_text"`
	ModelImg    ModelChoice          `json:"model_img"`
	Temperature FloatValue           `json:"temperature"`
	MaxTokens   IntValue             `json:"max_tokens"`
	Character   StringValue          `json:"character"`
	Characters  map[string]Character `json:"characters"`
}

type StringValue struct {
	Value string `json:"value"`
}

// Manager owns the settings record and serializes access to it.
type Manager struct {
	mu   sync.RWMutex
	rec  Record
	path string

	session sessionFlag
}

// NewManager wraps an in-memory record. Used by tests and by Load.
func NewManager(rec Record, path string) *Manager {
	normalize(&rec)
	return &Manager{rec: rec, path: path}
}

// Load reads the settings record from path, falling back to the default
// settings file when the user record does not exist yet.
func Load(path, fallback string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data, err = os.ReadFile(fallback)
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return NewManager(rec, path), nil
}

// normalize clamps out-of-range generation parameters and fills the
// descriptor names from their map keys.
func normalize(rec *Record) {
	if rec.Temperature.Value < config.MinTemperature || rec.Temperature.Value > config.MaxTemperature {
		rec.Temperature.Value = config.DefaultTemperature
	}
	if rec.MaxTokens.Value < config.MinMaxTokens || rec.MaxTokens.Value > config.MaxMaxTokens {
		rec.MaxTokens.Value = config.DefaultMaxTokens
	}
	for name, d := range rec.ModelText.Choices {
		d.Name = name
		rec.ModelText.Choices[name] = d
	}
	for name, d := range rec.ModelImg.Choices {
		d.Name = name
		rec.ModelImg.Choices[name] = d
	}
}

// Save writes the record back to its path.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.rec, "", "    ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current record.
func (m *Manager) Snapshot() Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec
}

// Replace swaps in a new record, typically produced by the settings wizard.
func (m *Manager) Replace(rec Record) {
	normalize(&rec)
	m.mu.Lock()
	m.rec = rec
	m.mu.Unlock()
}

// resolve looks up the selected descriptor in a model choice.
func resolve(c ModelChoice) (domain.ModelDescriptor, error) {
	d, ok := c.Choices[c.Value]
	if !ok {
		return domain.ModelDescriptor{}, fmt.Errorf("model %q: %w", c.Value, domain.ErrUnknownModel)
	}
	return d, nil
}

// ActiveTextModel resolves the selected text model descriptor.
func (m *Manager) ActiveTextModel() (domain.ModelDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return resolve(m.rec.ModelText)
}

// ActiveImageModel resolves the selected image model descriptor.
func (m *Manager) ActiveImageModel() (domain.ModelDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return resolve(m.rec.ModelImg)
}

// TextModel resolves a text model descriptor by logical name.
func (m *Manager) TextModel(name string) (domain.ModelDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.rec.ModelText.Choices[name]
	if !ok {
		return domain.ModelDescriptor{}, fmt.Errorf("text model %q: %w", name, domain.ErrUnknownModel)
	}
	return d, nil
}

// ImageModel resolves an image model descriptor by logical name.
func (m *Manager) ImageModel(name string) (domain.ModelDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.rec.ModelImg.Choices[name]
	if !ok {
		return domain.ModelDescriptor{}, fmt.Errorf("image model %q: %w", name, domain.ErrUnknownModel)
	}
	return d, nil
}

// ActiveCharacter returns the selected character and its name. When the
// selection is missing a minimal default persona is returned.
func (m *Manager) ActiveCharacter() (string, Character) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name := m.rec.Character.Value
	if ch, ok := m.rec.Characters[name]; ok {
		return name, ch
	}
	return "default", Character{SystemPrompt: "You are a helpful assistant."}
}

// Character looks up a character by name.
func (m *Manager) Character(name string) (Character, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.rec.Characters[name]
	return ch, ok
}

// Temperature returns the validated sampling temperature.
func (m *Manager) Temperature() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec.Temperature.Value
}

// MaxTokens returns the validated completion token limit.
func (m *Manager) MaxTokens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec.MaxTokens.Value
}
