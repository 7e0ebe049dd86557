package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const cardColumns = `id, user_id, card_type, last_four, expiry_date, cardholder_name,
	status, is_default, subscription_id, created_at, updated_at`

// cardUpdateColumns are the only columns UpdateCardColumns will interpolate
// into SQL. The service layer applies the business allow-list; this one
// exists so no dynamic key can ever reach the query text unchecked.
var cardUpdateColumns = map[string]bool{
	"card_type":       true,
	"last_four":       true,
	"expiry_date":     true,
	"cardholder_name": true,
	"status":          true,
	"is_default":      true,
	"subscription_id": true,
}

func (m *MySQLAdapter) CreateCard(ctx context.Context, c *domain.Card) error {
	tx, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if c.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE cards SET is_default = FALSE WHERE user_id = ?`, c.UserID); err != nil {
			return fmt.Errorf("clear defaults: %w", err)
		}
	}

	now := time.Now().UTC()
	var subID any
	if c.SubscriptionID != "" {
		subID = c.SubscriptionID
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO cards (user_id, card_type, last_four, expiry_date, cardholder_name,
			status, is_default, subscription_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.CardType, c.LastFour, c.ExpiryDate, c.CardholderName,
		c.Status, c.IsDefault, subID, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("card insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit card: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func scanCard(s interface{ Scan(...any) error }) (*domain.Card, error) {
	var c domain.Card
	var status, subID sql.NullString
	err := s.Scan(&c.ID, &c.UserID, &c.CardType, &c.LastFour, &c.ExpiryDate,
		&c.CardholderName, &status, &c.IsDefault, &subID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err, "scan card")
	}
	c.Status = status.String
	c.SubscriptionID = subID.String
	return &c, nil
}

func (m *MySQLAdapter) GetCard(ctx context.Context, id int64) (*domain.Card, error) {
	return scanCard(m.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
}

func (m *MySQLAdapter) GetUserCard(ctx context.Context, userID, id int64) (*domain.Card, error) {
	return scanCard(m.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ? AND user_id = ?`, id, userID))
}

func (m *MySQLAdapter) GetCardBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Card, error) {
	return scanCard(m.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE subscription_id = ?`, subscriptionID))
}

func (m *MySQLAdapter) ListCards(ctx context.Context, userID int64) ([]domain.Card, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE user_id = ? ORDER BY is_default DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (m *MySQLAdapter) UpdateCardColumns(ctx context.Context, id int64, columns map[string]any) (*domain.Card, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns to update")
	}

	setClauses := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)
	for col, val := range columns {
		if !cardUpdateColumns[col] {
			return nil, fmt.Errorf("unknown card column %q", col)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	res, err := m.db.ExecContext(ctx,
		`UPDATE cards SET `+strings.Join(setClauses, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		// Distinguish a missing row from a same-value update.
		if _, err := m.GetCard(ctx, id); err != nil {
			return nil, err
		}
	}
	return m.GetCard(ctx, id)
}

func (m *MySQLAdapter) SetDefaultCard(ctx context.Context, userID, id int64) error {
	tx, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var owner int64
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM cards WHERE id = ? FOR UPDATE`, id).Scan(&owner)
	if err != nil {
		return mapNoRows(err, "lock card")
	}
	if owner != userID {
		return port.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE cards SET is_default = FALSE WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear defaults: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cards SET is_default = TRUE, updated_at = NOW() WHERE id = ?`, id); err != nil {
		return fmt.Errorf("set default: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set default: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteCard(ctx context.Context, userID, id int64) error {
	tx, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var wasDefault bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_default FROM cards WHERE id = ? AND user_id = ? FOR UPDATE`,
		id, userID).Scan(&wasDefault)
	if err != nil {
		return mapNoRows(err, "lock card")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}

	if wasDefault {
		// Promote an arbitrary remaining card, if any.
		if _, err := tx.ExecContext(ctx, `
			UPDATE cards SET is_default = TRUE, updated_at = NOW()
			WHERE user_id = ? ORDER BY id LIMIT 1`, userID); err != nil {
			return fmt.Errorf("promote default: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}
