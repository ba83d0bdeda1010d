package settings

import (
	"fmt"

	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
)

// SetTextModel selects a text model by logical name.
func (m *Manager) SetTextModel(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rec.ModelText.Choices[name]; !ok {
		return fmt.Errorf("text model %q: %w", name, domain.ErrUnknownModel)
	}
	m.rec.ModelText.Value = name
	return nil
}

// SetImageModel selects an image model by logical name.
func (m *Manager) SetImageModel(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rec.ModelImg.Choices[name]; !ok {
		return fmt.Errorf("image model %q: %w", name, domain.ErrUnknownModel)
	}
	m.rec.ModelImg.Value = name
	return nil
}

// SetTemperature sets the sampling temperature, enforcing the valid range.
func (m *Manager) SetTemperature(v float64) error {
	if v < config.MinTemperature || v > config.MaxTemperature {
		return fmt.Errorf("temperature %.2f out of range [%.1f, %.1f]", v, config.MinTemperature, config.MaxTemperature)
	}
	m.mu.Lock()
	m.rec.Temperature.Value = v
	m.mu.Unlock()
	return nil
}

// SetMaxTokens sets the completion token limit, enforcing the valid range.
func (m *Manager) SetMaxTokens(v int) error {
	if v < config.MinMaxTokens || v > config.MaxMaxTokens {
		return fmt.Errorf("max_tokens %d out of range [%d, %d]", v, config.MinMaxTokens, config.MaxMaxTokens)
	}
	m.mu.Lock()
	m.rec.MaxTokens.Value = v
	m.mu.Unlock()
	return nil
}

// SetCharacter selects the active character by name.
func (m *Manager) SetCharacter(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rec.Characters[name]; !ok {
		return fmt.Errorf("unknown character %q", name)
	}
	m.rec.Character.Value = name
	return nil
}
