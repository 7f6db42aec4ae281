package store

import (
	"context"
	"database/sql"

	"github.com/example/vexokart/internal/notification"
)

const NotificationLogsSchema = `
CREATE TABLE IF NOT EXISTS notification_logs (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	order_id    TEXT NOT NULL,
	channel     TEXT NOT NULL,
	status      TEXT NOT NULL,
	response    TEXT NOT NULL,
	type        TEXT NOT NULL,
	retry_count INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notification_logs_created_at_idx ON notification_logs (created_at DESC);
`

// PostgresLogStore keeps every delivery record; Recent serves the tail.
type PostgresLogStore struct {
	db *sql.DB
}

func NewPostgresLogStore(db *sql.DB) *PostgresLogStore {
	return &PostgresLogStore{db: db}
}

func (s *PostgresLogStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, NotificationLogsSchema)
	return err
}

func (s *PostgresLogStore) Append(ctx context.Context, entry notification.Log) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_logs (id, user_id, order_id, channel, status, response, type, retry_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, entry.OrderID, string(entry.Channel), string(entry.Status),
		entry.Response, entry.Type, entry.RetryCount, entry.CreatedAt,
	)
	return err
}

func (s *PostgresLogStore) Recent(ctx context.Context, limit int) ([]notification.Log, error) {
	if limit <= 0 {
		limit = notification.DefaultLogCapacity
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, order_id, channel, status, response, type, retry_count, created_at
		 FROM notification_logs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []notification.Log
	for rows.Next() {
		var l notification.Log
		var channel, status string
		if err := rows.Scan(&l.ID, &l.UserID, &l.OrderID, &channel, &status, &l.Response, &l.Type, &l.RetryCount, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Channel = notification.Channel(channel)
		l.Status = notification.DeliveryStatus(status)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
