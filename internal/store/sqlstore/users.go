// internal/store/sqlstore/users.go
package sqlstore

import (
	"context"
	"fmt"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

type users struct{ t *Tx }

const userColumns = `id, username, email, balance, created_at`

func scanUser(row rowScanner) (*market.User, error) {
	var u market.User
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Balance, &createdAt); err != nil {
		return nil, notFound(err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// Get locks the user row where the dialect supports it; balances are only
// read in order to be written back.
func (r users) Get(ctx context.Context, id uuid.UUID) (*market.User, error) {
	row := r.t.queryRow(ctx, r.t.forUpdate(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (r users) GetByUsername(ctx context.Context, username string) (*market.User, error) {
	row := r.t.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func (r users) Insert(ctx context.Context, u *market.User) error {
	err := r.t.insert(ctx, market.ErrUsernameTaken, `
		INSERT INTO users (id, username, email, balance, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.Balance, toMillis(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r users) UpdateBalance(ctx context.Context, u *market.User) error {
	if err := r.t.updateOne(ctx, `UPDATE users SET balance = ? WHERE id = ?`, u.Balance, u.ID); err != nil {
		return fmt.Errorf("update balance of user %s: %w", u.ID, err)
	}
	return nil
}

func (r users) InsertCredential(ctx context.Context, c *market.Credential) error {
	err := r.t.insert(ctx, nil, `
		INSERT INTO credentials (user_id, password_hash, salt)
		VALUES (?, ?, ?)`,
		c.UserID, c.PasswordHash, c.Salt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r users) GetCredential(ctx context.Context, userID uuid.UUID) (*market.Credential, error) {
	c := &market.Credential{}
	err := r.t.queryRow(ctx, `
		SELECT user_id, password_hash, salt
		FROM credentials
		WHERE user_id = ?`, userID).Scan(&c.UserID, &c.PasswordHash, &c.Salt)
	if err != nil {
		return nil, fmt.Errorf("get credential for %s: %w", userID, notFound(err))
	}
	return c, nil
}
