package settings

import (
	"sync"
	"time"

	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
)

// sessionFlag is the advisory "user is in settings" marker. It is not a
// lock: a session older than the expiry is treated as abandoned and may
// be taken over by the next caller.
type sessionFlag struct {
	mu        sync.Mutex
	userID    int64
	startedAt time.Time
}

// TryBeginSession claims the settings session for userID. Returns
// ErrSettingsBusy while another user holds an unexpired session.
func (m *Manager) TryBeginSession(userID int64) error {
	return m.session.tryBegin(userID, time.Now())
}

// EndSession releases the settings session if userID holds it.
func (m *Manager) EndSession(userID int64) {
	m.session.end(userID)
}

func (f *sessionFlag) tryBegin(userID int64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.userID != 0 && f.userID != userID {
		if now.Sub(f.startedAt) < config.SettingsSessionTimeout {
			return domain.ErrSettingsBusy
		}
		// Abandoned session, steal it.
	}
	f.userID = userID
	f.startedAt = now
	return nil
}

func (f *sessionFlag) end(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userID == userID {
		f.userID = 0
		f.startedAt = time.Time{}
	}
}
