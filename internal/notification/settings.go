package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

type EmailProvider struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	From     string `json:"from" yaml:"from"`
}

type SMSProvider struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	SenderID string `json:"sender_id" yaml:"sender_id"`
}

// Settings controls which channels the dispatcher uses. Last write wins.
type Settings struct {
	EmailEnabled bool          `json:"email_enabled" yaml:"email_enabled"`
	SMSEnabled   bool          `json:"sms_enabled" yaml:"sms_enabled"`
	Sandbox      bool          `json:"sandbox" yaml:"sandbox"`
	Email        EmailProvider `json:"email" yaml:"email"`
	SMS          SMSProvider   `json:"sms" yaml:"sms"`
}

const redactedKey = "********"

// Redacted hides provider keys for display.
func (s Settings) Redacted() Settings {
	if s.Email.APIKey != "" {
		s.Email.APIKey = redactedKey
	}
	if s.SMS.APIKey != "" {
		s.SMS.APIKey = redactedKey
	}
	return s
}

// KeepSecrets carries prev's provider keys over wherever s leaves a key
// empty or still redacted, so a form round-trip never wipes them.
func (s Settings) KeepSecrets(prev Settings) Settings {
	if s.Email.APIKey == "" || s.Email.APIKey == redactedKey {
		s.Email.APIKey = prev.Email.APIKey
	}
	if s.SMS.APIKey == "" || s.SMS.APIKey == redactedKey {
		s.SMS.APIKey = prev.SMS.APIKey
	}
	return s
}

// LoadSettingsFile reads YAML settings from path.
func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read notification settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse notification settings: %w", err)
	}
	return s, nil
}

// ErrNoSettings is returned by a SettingsRepository that holds no row yet.
var ErrNoSettings = errors.New("no notification settings stored")

// SettingsRepository persists settings so every process reads the same row.
type SettingsRepository interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// SettingsStore holds the live settings shared by the dispatcher and the
// admin API. With a repository every Get reads through to it, and the last
// value read is kept for when the repository is unreachable.
type SettingsStore struct {
	mu       sync.RWMutex
	settings Settings
	repo     SettingsRepository
	logger   *slog.Logger
}

// NewSettingsStore keeps settings in this process only.
func NewSettingsStore(initial Settings) *SettingsStore {
	return &SettingsStore{settings: initial, logger: slog.Default()}
}

// NewSharedSettingsStore reads settings from repo, seeding it with initial
// when nothing is stored yet. A stored row always wins over initial.
func NewSharedSettingsStore(ctx context.Context, initial Settings, repo SettingsRepository, logger *slog.Logger) (*SettingsStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stored, err := repo.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSettings):
		if err := repo.Save(ctx, initial); err != nil {
			return nil, fmt.Errorf("seed notification settings: %w", err)
		}
		stored = initial
	case err != nil:
		return nil, fmt.Errorf("load notification settings: %w", err)
	}
	return &SettingsStore{settings: stored, repo: repo, logger: logger}, nil
}

func (s *SettingsStore) Get(ctx context.Context) Settings {
	if s.repo != nil {
		stored, err := s.repo.Load(ctx)
		if err == nil {
			s.mu.Lock()
			s.settings = stored
			s.mu.Unlock()
			return stored
		}
		s.logger.Warn("using cached notification settings", slog.String("error", err.Error()))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Set saves settings to the repository first; the cache only changes once
// the write succeeded.
func (s *SettingsStore) Set(ctx context.Context, settings Settings) error {
	if s.repo != nil {
		if err := s.repo.Save(ctx, settings); err != nil {
			return fmt.Errorf("save notification settings: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}
