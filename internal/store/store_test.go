package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmajor9/relaybot/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s := New(filepath.Join(dir, "conversations"), filepath.Join(dir, "media"))
	require.NoError(t, s.LoadAll())
	return s
}

func testConversation(id string) *domain.Conversation {
	return &domain.Conversation{
		ID:          id,
		ChannelID:   10,
		UserID:      1,
		Timestamp:   time.Now().Format(time.RFC3339),
		ModelText:   "fast",
		ModelImg:    "sd",
		Character:   "helper",
		Temperature: 0.7,
		MaxTokens:   256,
		Messages: []domain.TranscriptEntry{
			{Role: domain.RoleSystem, Content: "You are helpful.", MessageIDs: []int{}, Type: domain.EntryTypeCharacter},
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	convDir := filepath.Join(dir, "conversations")
	mediaDir := filepath.Join(dir, "media")

	s := New(convDir, mediaDir)
	require.NoError(t, s.LoadAll())

	conv := testConversation("10_1")
	require.NoError(t, s.Create(conv))
	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{
		Role: domain.RoleUser, Content: "héllo 世界 🚀", MessageIDs: []int{5},
	}))
	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{
		Role: domain.RoleAssistant, Content: "hello back", MessageIDs: []int{},
	}))

	want, ok := s.Snapshot("10_1")
	require.True(t, ok)

	// A fresh store rehydrates an identical conversation.
	reloaded := New(convDir, mediaDir)
	require.NoError(t, reloaded.LoadAll())
	got, ok := reloaded.Snapshot("10_1")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStore_AppendWritesThrough(t *testing.T) {
	dir := t.TempDir()
	convDir := filepath.Join(dir, "conversations")
	s := New(convDir, filepath.Join(dir, "media"))
	require.NoError(t, s.LoadAll())

	require.NoError(t, s.Create(testConversation("10_1")))
	before, err := os.ReadFile(filepath.Join(convDir, "10_1.json"))
	require.NoError(t, err)

	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{Role: domain.RoleUser, Content: "hi", MessageIDs: []int{}}))
	after, err := os.ReadFile(filepath.Join(convDir, "10_1.json"))
	require.NoError(t, err)
	assert.NotEqual(t, before, after, "append must persist immediately")
}

func TestStore_TruncateToLastAssistant(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(testConversation("10_1")))
	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{Role: domain.RoleUser, Content: "hi", MessageIDs: []int{5}}))
	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{Role: domain.RoleAssistant, Content: "hello", MessageIDs: []int{6, 7}}))

	removed, err := s.TruncateToLast("10_1", domain.RoleAssistant)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, []int{6, 7}, removed[0].MessageIDs)

	conv, _ := s.Snapshot("10_1")
	last := conv.LastEntry()
	require.NotNil(t, last)
	assert.NotEqual(t, domain.RoleAssistant, last.Role)
}

func TestStore_TruncateToLastUserTakesTrailingAssistant(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(testConversation("10_1")))
	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{Role: domain.RoleUser, Content: "hi", MessageIDs: []int{5}}))
	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{Role: domain.RoleAssistant, Content: "hello", MessageIDs: []int{6}}))

	removed, err := s.TruncateToLast("10_1", domain.RoleUser)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, domain.RoleUser, removed[0].Role)
	assert.Equal(t, domain.RoleAssistant, removed[1].Role)

	conv, _ := s.Snapshot("10_1")
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, domain.RoleSystem, conv.Messages[0].Role)
}

func TestStore_TruncateNeverRemovesSystemEntry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(testConversation("10_1")))

	removed, err := s.TruncateToLast("10_1", domain.RoleAssistant)
	require.NoError(t, err)
	assert.Nil(t, removed)

	conv, _ := s.Snapshot("10_1")
	require.Len(t, conv.Messages, 1)
}

func TestStore_SetCharacterKeepsSingleSystemEntry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(testConversation("10_1")))
	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{Role: domain.RoleUser, Content: "hi", MessageIDs: []int{}}))

	require.NoError(t, s.SetCharacter("10_1", "pirate", "You are a pirate."))

	conv, _ := s.Snapshot("10_1")
	assert.Equal(t, "pirate", conv.Character)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, domain.RoleSystem, conv.Messages[0].Role)
	assert.Equal(t, "You are a pirate.", conv.Messages[0].Content)

	systemCount := 0
	for _, m := range conv.Messages {
		if m.Role == domain.RoleSystem {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)
}

func TestStore_FindByMessageID(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(testConversation("10_1")))
	require.NoError(t, s.Append("10_1", domain.TranscriptEntry{Role: domain.RoleAssistant, Content: "x", MessageIDs: []int{42}}))

	conv, ok := s.FindByMessageID(42)
	require.True(t, ok)
	assert.Equal(t, "10_1", conv.ID)

	_, ok = s.FindByMessageID(43)
	assert.False(t, ok)
}

func TestStore_ClearGuards(t *testing.T) {
	dir := t.TempDir()
	convDir := filepath.Join(dir, "conversations")
	mediaDir := filepath.Join(dir, "media")
	s := New(convDir, mediaDir)
	require.NoError(t, s.LoadAll())

	require.NoError(t, s.Create(testConversation("10_1")))
	_, err := s.SaveMedia("10_1", []byte("png"))
	require.NoError(t, err)

	// Wrong user.
	assert.ErrorIs(t, s.Clear("10_1", 999, nil), domain.ErrNotOwner)

	// Busy conversation.
	busy := func(id string) bool { return true }
	assert.ErrorIs(t, s.Clear("10_1", 1, busy), domain.ErrConversationBusy)

	// Success removes record and media directory.
	require.NoError(t, s.Clear("10_1", 1, func(string) bool { return false }))
	assert.False(t, s.Has("10_1"))
	_, err = os.Stat(filepath.Join(convDir, "10_1.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(mediaDir, "10_1"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, s.Clear("10_1", 1, nil), domain.ErrConversationNotFound)
}

func TestStore_ActiveTextModels(t *testing.T) {
	s := newTestStore(t)
	a := testConversation("10_1")
	b := testConversation("20_2")
	b.ID = "20_2"
	b.ChannelID = 20
	b.UserID = 2
	b.ModelText = "local"
	require.NoError(t, s.Create(a))
	require.NoError(t, s.Create(b))

	active := s.ActiveTextModels()
	assert.Equal(t, map[string]struct{}{"fast": {}, "local": {}}, active)
}

func TestStore_SaveMediaUsesConversationDir(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "conversations"), filepath.Join(dir, "media"))
	require.NoError(t, s.LoadAll())

	path, err := s.SaveMedia("10_1", []byte("imgdata"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "media", "10_1"), filepath.Dir(path))
	assert.Equal(t, ".png", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("imgdata"), data)
}
