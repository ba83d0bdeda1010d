// Package store is the durable conversation store: an in-memory map that
// is the source of truth after startup, written through to one JSON
// record per conversation on every mutation.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	dir      string
	mediaDir string
	convs    map[string]*domain.Conversation
}

func New(dir, mediaDir string) *Store {
	return &Store{
		dir:      dir,
		mediaDir: mediaDir,
		convs:    make(map[string]*domain.Conversation),
	}
}

// LoadAll rehydrates every persisted conversation. Called once at
// process start; records that fail to parse are skipped with a logged
// error rather than aborting startup.
func (s *Store) LoadAll() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create conversation dir: %w", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan conversation dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("read conversation record", "path", path, "error", err)
			continue
		}
		conv := &domain.Conversation{}
		if err := json.Unmarshal(data, conv); err != nil {
			slog.Error("parse conversation record", "path", path, "error", err)
			continue
		}
		conv.ID = strings.TrimSuffix(entry.Name(), ".json")
		s.convs[conv.ID] = conv
	}
	slog.Info("conversations loaded", "count", len(s.convs))
	return nil
}

// Create registers a new conversation and persists it. Returns an error
// if the id is already taken.
func (s *Store) Create(conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[conv.ID]; ok {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}
	s.convs[conv.ID] = conv
	return s.persist(conv)
}

// Has reports whether a conversation exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.convs[id]
	return ok
}

// Snapshot returns a copy of the conversation safe to read without
// holding the store lock.
func (s *Store) Snapshot(id string) (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return domain.Conversation{}, false
	}
	out := *conv
	out.Messages = make([]domain.TranscriptEntry, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return out, true
}

// Append adds an entry to the transcript and writes the record through.
func (s *Store) Append(id string, entry domain.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	conv.Messages = append(conv.Messages, entry)
	return s.persist(conv)
}

// AttachToLast records the platform message ids that rendered the
// trailing transcript entry.
func (s *Store) AttachToLast(id string, messageIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	if len(conv.Messages) == 0 {
		return fmt.Errorf("conversation %s has no entries", id)
	}
	last := &conv.Messages[len(conv.Messages)-1]
	last.MessageIDs = append(last.MessageIDs, messageIDs...)
	return s.persist(conv)
}

// TruncateToLast removes entries from the tail until one with the given
// role has been removed, inclusive. The removed entries are returned in
// transcript order. The character system entry at position 0 is never
// removed; if no entry with the role exists above it the transcript is
// left untouched.
func (s *Store) TruncateToLast(id, role string) ([]domain.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}

	cut := -1
	for i := len(conv.Messages) - 1; i > 0; i-- {
		if conv.Messages[i].Role == role {
			cut = i
			break
		}
	}
	if cut == -1 {
		return nil, nil
	}

	removed := make([]domain.TranscriptEntry, len(conv.Messages)-cut)
	copy(removed, conv.Messages[cut:])
	conv.Messages = conv.Messages[:cut]
	if err := s.persist(conv); err != nil {
		return nil, err
	}
	return removed, nil
}

// SetCharacter replaces the system entry at position 0 and records the
// new character name.
func (s *Store) SetCharacter(id, name, systemPrompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return domain.ErrConversationNotFound
	}

	entry := domain.TranscriptEntry{
		Role:       domain.RoleSystem,
		Content:    systemPrompt,
		MessageIDs: []int{},
		Type:       domain.EntryTypeCharacter,
	}
	if len(conv.Messages) > 0 && conv.Messages[0].Role == domain.RoleSystem {
		conv.Messages[0] = entry
	} else {
		conv.Messages = append([]domain.TranscriptEntry{entry}, conv.Messages...)
	}
	conv.Character = name
	return s.persist(conv)
}

// FindByMessageID locates the conversation that rendered the given
// platform message.
func (s *Store) FindByMessageID(messageID int) (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conv := range s.convs {
		if conv.References(messageID) {
			out := *conv
			out.Messages = make([]domain.TranscriptEntry, len(conv.Messages))
			copy(out.Messages, conv.Messages)
			return out, true
		}
	}
	return domain.Conversation{}, false
}

// ActiveTextModels returns the set of text model names currently assigned
// to any live conversation. This is the reference set for eviction.
func (s *Store) ActiveTextModels() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make(map[string]struct{}, len(s.convs))
	for _, conv := range s.convs {
		if conv.ModelText != "" {
			active[conv.ModelText] = struct{}{}
		}
	}
	return active
}

// Clear deletes a conversation, its record file and its media directory.
// Only the originating user may clear, and never while requests for the
// conversation are queued or in flight.
func (s *Store) Clear(id string, requestingUser int64, busy func(id string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	if conv.UserID != requestingUser {
		return domain.ErrNotOwner
	}
	if busy != nil && busy(id) {
		return domain.ErrConversationBusy
	}

	delete(s.convs, id)
	if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove conversation record: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(s.mediaDir, id)); err != nil {
		return fmt.Errorf("remove media dir: %w", err)
	}
	slog.Info("conversation cleared", "conversation", id)
	return nil
}

// SaveMedia writes a generated PNG into the conversation's media
// directory under a timestamp-based filename and returns its path.
func (s *Store) SaveMedia(id string, data []byte) (string, error) {
	dir := filepath.Join(s.mediaDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	path := filepath.Join(dir, time.Now().Format(config.MediaTimeFormat)+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return path, nil
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// persist writes the full record, 4-space indented. Caller holds the lock.
func (s *Store) persist(conv *domain.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if err := os.WriteFile(s.recordPath(conv.ID), data, 0o644); err != nil {
		return fmt.Errorf("write conversation record: %w", err)
	}
	return nil
}
