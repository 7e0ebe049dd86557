package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

const userColumns = `id, username, email, password_hash, first_name, last_name,
	address, city, state, zip_code, country, phone, is_admin, created_at, updated_at`

func (m *MySQLAdapter) CreateUser(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name,
			address, city, state, zip_code, country, phone, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.Address, u.City, u.State, u.ZipCode, u.Country, u.Phone, u.IsAdmin, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (m *MySQLAdapter) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Address, &u.City, &u.State, &u.ZipCode, &u.Country, &u.Phone, &u.IsAdmin,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err, "scan user")
	}
	return &u, nil
}

func (m *MySQLAdapter) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (m *MySQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (m *MySQLAdapter) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}
