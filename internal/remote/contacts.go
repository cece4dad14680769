package remote

import (
	"context"
	"database/sql"
)

// ContactStore resolves user contact details for the email delivery
// fallback.
type ContactStore struct {
	db *sql.DB
}

// NewContactStore creates a contact lookup over an open database handle.
func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

// Email returns the email address registered for the user.
func (c *ContactStore) Email(ctx context.Context, userID string) (string, error) {
	var email string
	err := c.db.QueryRowContext(ctx,
		`SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		return "", err
	}
	return email, nil
}
