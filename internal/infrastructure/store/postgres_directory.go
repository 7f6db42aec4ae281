package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/vexokart/internal/directory"
)

// PostgresDirectory reads shoppers from the read_users table maintained by
// the account service.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindUserByEmail(ctx context.Context, email string) (*directory.User, error) {
	var u directory.User
	var phone sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT id, email, name, phone, role
		FROM read_users WHERE lower(email) = lower($1) AND is_active
	`, email).Scan(&u.ID, &u.Email, &u.Name, &phone, &u.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrUserNotFound
		}
		return nil, err
	}
	u.Phone = phone.String
	return &u, nil
}

// PostgresCatalog reads vendor ownership from read_products.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) VendorProductIDs(ctx context.Context, vendorID string) (map[string]struct{}, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM read_products WHERE vendor_id = $1`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
