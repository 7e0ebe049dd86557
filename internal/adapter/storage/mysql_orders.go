package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const orderColumns = `id, user_id, status, total_amount, shipping_address, billing_address, created_at, updated_at`

func (m *MySQLAdapter) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount, shipping_address, billing_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.UserID, o.Status, o.TotalAmount, o.ShippingAddress, o.BillingAddress, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("order insert id: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = orderID

		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES (?, ?, ?, ?)`,
			orderID, item.ProductID, item.Quantity, item.Price,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		item.ID, _ = res.LastInsertId()

		if err := decrementInventory(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}

	o.ID = orderID
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

func scanOrder(s interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := s.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount,
		&o.ShippingAddress, &o.BillingAddress, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err, "scan order")
	}
	return &o, nil
}

func (m *MySQLAdapter) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items WHERE order_id = ? ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := m.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (m *MySQLAdapter) GetUserOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, err
	}
	if err := m.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (m *MySQLAdapter) ListUserOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if err := m.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func orderFilterClauses(f domain.OrderFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.UserID != 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if !f.StartDate.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.StartDate)
	}
	if !f.EndDate.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.EndDate)
	}
	if f.MinAmount != nil {
		clauses = append(clauses, "total_amount >= ?")
		args = append(args, *f.MinAmount)
	}
	if f.MaxAmount != nil {
		clauses = append(clauses, "total_amount <= ?")
		args = append(args, *f.MaxAmount)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	where, args := orderFilterClauses(f)

	var total int
	if err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 {
		perPage = 20
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := m.db.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range orders {
		if err := m.loadItems(ctx, &orders[i]); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (m *MySQLAdapter) CancelOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	tx, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND user_id = ? FOR UPDATE`, id, userID))
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderStatusPending {
		return nil, port.ErrOrderNotCancellable
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`,
		domain.OrderStatusCancelled, id,
	); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	// Restore inventory for every line item exactly once.
	if _, err := tx.ExecContext(ctx, `
		UPDATE products p
		JOIN order_items oi ON oi.product_id = p.id
		SET p.inventory = p.inventory + oi.quantity, p.updated_at = NOW()
		WHERE oi.order_id = ?`, id,
	); err != nil {
		return nil, fmt.Errorf("restore inventory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}

	o.Status = domain.OrderStatusCancelled
	if err := m.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW()
		WHERE id = ? AND status != ?`,
		status, id, domain.OrderStatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		// Either the order is gone or it is cancelled; tell them apart.
		o, err := m.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if o.Status == domain.OrderStatusCancelled {
			return nil, port.ErrOrderNotCancellable
		}
		return o, nil // no-op update to the same status
	}
	return m.GetOrder(ctx, id)
}

func (m *MySQLAdapter) OrderStatistics(ctx context.Context, since time.Time, days int) (*domain.OrderStatistics, error) {
	stats := &domain.OrderStatistics{
		OrdersByStatus: make(map[domain.OrderStatus]int),
		TotalRevenue:   decimal.Zero,
		AvgOrderValue:  decimal.Zero,
		Days:           days,
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM orders WHERE created_at >= ? GROUP BY status`, since)
	if err != nil {
		return nil, fmt.Errorf("orders by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st domain.OrderStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.OrdersByStatus[st] = n
		stats.TotalOrders += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var revenue sql.NullString
	if err := m.db.QueryRowContext(ctx, `
		SELECT SUM(total_amount) FROM orders
		WHERE created_at >= ? AND status != ?`,
		since, domain.OrderStatusCancelled,
	).Scan(&revenue); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("total revenue: %w", err)
	}
	if revenue.Valid {
		d, err := decimal.NewFromString(revenue.String)
		if err != nil {
			return nil, fmt.Errorf("parse revenue: %w", err)
		}
		stats.TotalRevenue = d
	}
	if stats.TotalOrders > 0 {
		stats.AvgOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.TotalOrders))).Round(2)
	}

	daily, err := m.db.QueryContext(ctx, `
		SELECT DATE(created_at) AS day,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN status != ? THEN total_amount ELSE 0 END), 0)
		FROM orders
		WHERE created_at >= ?
		GROUP BY day ORDER BY day`,
		domain.OrderStatusCancelled, since)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	defer daily.Close()

	byDay := make(map[string]domain.DailyOrderStats)
	for daily.Next() {
		var day string
		var n int
		var rev decimal.Decimal
		if err := daily.Scan(&day, &n, &rev); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		byDay[day] = domain.DailyOrderStats{Date: day, Orders: n, Revenue: rev}
	}
	if err := daily.Err(); err != nil {
		return nil, err
	}

	// Emit a row for every day in the window, zero-filled when quiet.
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		if ds, ok := byDay[day]; ok {
			stats.DailyStats = append(stats.DailyStats, ds)
		} else {
			stats.DailyStats = append(stats.DailyStats, domain.DailyOrderStats{
				Date: day, Revenue: decimal.Zero,
			})
		}
	}

	return stats, nil
}
