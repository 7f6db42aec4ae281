package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/vexokart/internal/domain/order"
	"github.com/lib/pq"
)

// OrdersSchema creates the orders table. The full document lives in data;
// the other columns exist for lookups and listing.
const OrdersSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	user_email      TEXT NOT NULL,
	status          TEXT NOT NULL,
	qr_token_digest TEXT,
	version         INTEGER NOT NULL,
	data            JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_qr_token_digest_idx ON orders (qr_token_digest) WHERE qr_token_digest IS NOT NULL;
CREATE INDEX IF NOT EXISTS orders_user_email_idx ON orders (user_email);
`

// PostgresOrderStore stores orders in PostgreSQL
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

func (s *PostgresOrderStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, OrdersSchema)
	return err
}

func (s *PostgresOrderStore) Create(ctx context.Context, o *order.Order) error {
	o.Version = 1
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_email, status, qr_token_digest, version, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserEmail, string(o.Status), nullString(o.QRTokenDigest), o.Version, data, o.CreatedAt, o.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateOrder
	}
	return err
}

func (s *PostgresOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PostgresOrderStore) GetByTokenDigest(ctx context.Context, digest string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM orders WHERE qr_token_digest = $1`, digest)
	return scanOrder(row)
}

// Update locks the row for the duration of fn so concurrent processes
// serialize on the same order.
func (s *PostgresOrderStore) Update(ctx context.Context, id string, fn func(o *order.Order) (bool, error)) (*order.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT data FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	changed, err := fn(o)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}

	o.Version++
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $2, qr_token_digest = $3, version = $4, data = $5, updated_at = $6
		 WHERE id = $1`,
		o.ID, string(o.Status), nullString(o.QRTokenDigest), o.Version, data, o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresOrderStore) List(ctx context.Context) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM orders ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}

	var o order.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
