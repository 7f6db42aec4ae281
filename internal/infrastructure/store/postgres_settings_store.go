package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/example/vexokart/internal/notification"
)

const NotificationSettingsSchema = `
CREATE TABLE IF NOT EXISTS notification_settings (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresSettingsStore keeps the single settings row every process reads.
type PostgresSettingsStore struct {
	db *sql.DB
}

func NewPostgresSettingsStore(db *sql.DB) *PostgresSettingsStore {
	return &PostgresSettingsStore{db: db}
}

func (s *PostgresSettingsStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, NotificationSettingsSchema)
	return err
}

func (s *PostgresSettingsStore) Load(ctx context.Context) (notification.Settings, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM notification_settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return notification.Settings{}, notification.ErrNoSettings
	}
	if err != nil {
		return notification.Settings{}, err
	}
	var settings notification.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return notification.Settings{}, err
	}
	return settings, nil
}

func (s *PostgresSettingsStore) Save(ctx context.Context, settings notification.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notification_settings (id, data, updated_at) VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		data,
	)
	return err
}
