package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/storefront/internal/port"
)

// MySQLAdapter implements every repository port over a single *sql.DB.
// Multi-table operations run in one transaction; the row-level guarantees
// (non-negative inventory, single default card) are enforced with conditional
// updates rather than application locks.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

var (
	_ port.UserRepository    = (*MySQLAdapter)(nil)
	_ port.ProductRepository = (*MySQLAdapter)(nil)
	_ port.OrderRepository   = (*MySQLAdapter)(nil)
	_ port.CardRepository    = (*MySQLAdapter)(nil)
)

func (m *MySQLAdapter) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

// mapNoRows converts sql.ErrNoRows into the repository-level sentinel.
func mapNoRows(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
