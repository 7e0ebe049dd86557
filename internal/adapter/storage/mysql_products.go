package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const productColumns = `id, name, description, price, image, category, inventory, created_at, updated_at`

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO products (name, description, price, image, category, inventory, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Price, p.Image, p.Category, p.Inventory, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("product insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func scanProduct(s interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category,
		&p.Inventory, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err, "scan product")
	}
	return &p, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return scanProduct(m.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p *domain.Product) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, image = ?, category = ?, inventory = ?, updated_at = NOW()
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Image, p.Category, p.Inventory, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		if _, err := m.GetProduct(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id int64) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var clauses []string
	var args []any

	if f.Category != "" && f.Category != "all" {
		clauses = append(clauses, "LOWER(category) = LOWER(?)")
		args = append(args, f.Category)
	}
	if f.Query != "" {
		clauses = append(clauses, "(name LIKE ? OR description LIKE ? OR category LIKE ?)")
		like := "%" + f.Query + "%"
		args = append(args, like, like, like)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY id"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (m *MySQLAdapter) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// decrementInventory conditionally reduces stock inside tx; a zero row count
// means the product is missing or short on inventory.
func decrementInventory(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET inventory = inventory - ?, updated_at = NOW()
		WHERE id = ? AND inventory >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement inventory: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return &port.InsufficientInventoryError{ProductID: productID}
	}
	return nil
}
