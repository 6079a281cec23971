package notify

import (
	"encoding/json"
	"fmt"

	"github.com/jrazmi/lexprep/infrastructure/localstore"
	"github.com/jrazmi/lexprep/sdk/logger"
)

// Settings is the device-local notification preference. It is loaded
// once at startup, persisted on every change, and never synced remotely.
type Settings struct {
	Enabled        bool `json:"enabled"`
	ReminderOffset int  `json:"reminderOffset"` // minutes before task start
}

// ReminderOffsetOptions are the offsets the settings UI offers.
var ReminderOffsetOptions = []int{1, 5, 10, 15, 30}

// DefaultSettings matches a fresh install.
var DefaultSettings = Settings{Enabled: true, ReminderOffset: 5}

// SettingsStore persists Settings and the one-time prompt flag in the
// device-local store.
type SettingsStore struct {
	log *logger.Logger
	kv  localstore.KV
}

func NewSettingsStore(log *logger.Logger, kv localstore.KV) *SettingsStore {
	return &SettingsStore{log: log, kv: kv}
}

// Load returns the persisted settings, or the defaults when nothing is
// persisted or the blob is unreadable.
func (s *SettingsStore) Load() Settings {
	bs, ok, err := s.kv.Get(localstore.KeyNotificationSettings)
	if err != nil || !ok {
		return DefaultSettings
	}
	settings := DefaultSettings
	if err := json.Unmarshal(bs, &settings); err != nil {
		s.log.Warn("discarding unreadable notification settings", "error", err)
		return DefaultSettings
	}
	return settings
}

func (s *SettingsStore) Save(settings Settings) error {
	bs, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding notification settings: %w", err)
	}
	if err := s.kv.Set(localstore.KeyNotificationSettings, bs); err != nil {
		return fmt.Errorf("writing notification settings: %w", err)
	}
	return nil
}

// HasSeenPrompt reports whether the one-time notification prompt was
// already shown on this device.
func (s *SettingsStore) HasSeenPrompt() bool {
	_, ok, err := s.kv.Get(localstore.KeyNotificationPrompt)
	return err == nil && ok
}

// MarkPromptSeen records that the one-time prompt was shown.
func (s *SettingsStore) MarkPromptSeen() error {
	return s.kv.Set(localstore.KeyNotificationPrompt, []byte(`true`))
}
