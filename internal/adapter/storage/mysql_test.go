package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// openTestDB connects to the database named by STOREFRONT_TEST_MYSQL_DSN.
// The schema from scripts/schema.sql must already be applied.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("STOREFRONT_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skipf("STOREFRONT_TEST_MYSQL_DSN not set; skipping mysql tests")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		t.Skipf("mysql unreachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMySQLAdapter_OrderLifecycle(t *testing.T) {
	db := openTestDB(t)
	adapter := NewMySQLAdapter(db)
	ctx := context.Background()

	u := &domain.User{Username: "it-user", Email: "it-user@example.com", PasswordHash: "x"}
	if err := adapter.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	p := &domain.Product{
		Name: "it-widget", Description: "integration", Category: "it",
		Price: decimal.RequireFromString("9.99"), Inventory: 3,
	}
	if err := adapter.CreateProduct(ctx, p); err != nil {
		t.Fatal(err)
	}

	o := &domain.Order{
		UserID: u.ID, Status: domain.OrderStatusPending,
		TotalAmount:     decimal.RequireFromString("19.98"),
		ShippingAddress: "a", BillingAddress: "a",
		Items: []domain.OrderItem{{ProductID: p.ID, Quantity: 2, Price: p.Price}},
	}
	if err := adapter.CreateOrder(ctx, o); err != nil {
		t.Fatal(err)
	}

	after, err := adapter.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Inventory != 1 {
		t.Fatalf("inventory %d, want 1", after.Inventory)
	}

	// Over-ordering the remaining stock fails atomically.
	over := &domain.Order{
		UserID: u.ID, Status: domain.OrderStatusPending,
		TotalAmount:     decimal.RequireFromString("19.98"),
		ShippingAddress: "a", BillingAddress: "a",
		Items: []domain.OrderItem{{ProductID: p.ID, Quantity: 2, Price: p.Price}},
	}
	var short *port.InsufficientInventoryError
	if err := adapter.CreateOrder(ctx, over); !errors.As(err, &short) {
		t.Fatalf("expected InsufficientInventoryError, got %v", err)
	}

	cancelled, err := adapter.CancelOrder(ctx, o.ID, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("status %s", cancelled.Status)
	}
	after, _ = adapter.GetProduct(ctx, p.ID)
	if after.Inventory != 3 {
		t.Fatalf("inventory after cancel %d, want 3", after.Inventory)
	}
}

func TestMySQLAdapter_CardDefaultInvariant(t *testing.T) {
	db := openTestDB(t)
	adapter := NewMySQLAdapter(db)
	ctx := context.Background()

	u := &domain.User{Username: "it-card-user", Email: "it-card-user@example.com", PasswordHash: "x"}
	if err := adapter.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	a := &domain.Card{UserID: u.ID, CardType: "Visa", LastFour: "1111", ExpiryDate: "12/2030", CardholderName: "J", IsDefault: true}
	b := &domain.Card{UserID: u.ID, CardType: "Mastercard", LastFour: "2222", ExpiryDate: "01/2031", CardholderName: "J", IsDefault: true}
	for _, c := range []*domain.Card{a, b} {
		if err := adapter.CreateCard(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	cards, err := adapter.ListCards(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	defaults := 0
	for _, c := range cards {
		if c.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("defaults %d, want 1", defaults)
	}

	if err := adapter.DeleteCard(ctx, u.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	got, err := adapter.GetUserCard(ctx, u.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDefault {
		t.Fatal("surviving card not promoted")
	}
}
