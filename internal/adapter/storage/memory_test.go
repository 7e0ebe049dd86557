package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

func TestMemoryStore_UserLookups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	u := &domain.User{Username: "jane", Email: "jane@example.com", PasswordHash: "x"}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if u.ID == 0 {
		t.Fatal("no id assigned")
	}

	if _, err := store.GetUserByEmail(ctx, "jane@example.com"); err != nil {
		t.Fatalf("by email: %v", err)
	}
	if _, err := store.GetUserByUsername(ctx, "jane"); err != nil {
		t.Fatalf("by username: %v", err)
	}
	if _, err := store.GetUser(ctx, 999); !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	dup := &domain.User{Username: "other", Email: "jane@example.com"}
	if err := store.CreateUser(ctx, dup); err == nil {
		t.Fatal("duplicate email accepted")
	}
}

func TestMemoryStore_ProductFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	seed := []domain.Product{
		{Name: "Blue Mug", Description: "ceramic", Category: "kitchen", Price: decimal.New(5, 0), Inventory: 1},
		{Name: "Red Mug", Description: "ceramic", Category: "kitchen", Price: decimal.New(6, 0), Inventory: 1},
		{Name: "Hammer", Description: "steel", Category: "tools", Price: decimal.New(9, 0), Inventory: 1},
	}
	for i := range seed {
		if err := store.CreateProduct(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListProducts(ctx, domain.ProductFilter{Category: "Kitchen"})
	if err != nil || len(got) != 2 {
		t.Fatalf("category filter: %d products, err %v", len(got), err)
	}
	got, _ = store.ListProducts(ctx, domain.ProductFilter{Category: "all"})
	if len(got) != 3 {
		t.Fatalf("category 'all' should match everything, got %d", len(got))
	}
	got, _ = store.ListProducts(ctx, domain.ProductFilter{Query: "steel"})
	if len(got) != 1 || got[0].Name != "Hammer" {
		t.Fatalf("description search: %+v", got)
	}

	cats, _ := store.ListCategories(ctx)
	if len(cats) != 2 || cats[0] != "kitchen" || cats[1] != "tools" {
		t.Fatalf("categories %v", cats)
	}
}

func seedOrders(t *testing.T, store *MemoryStore) []domain.Order {
	t.Helper()
	ctx := context.Background()
	p := domain.Product{Name: "Widget", Description: "w", Category: "misc", Price: decimal.New(10, 0), Inventory: 100}
	if err := store.CreateProduct(ctx, &p); err != nil {
		t.Fatal(err)
	}

	var out []domain.Order
	for i, amount := range []string{"10", "20", "30"} {
		o := domain.Order{
			UserID:          int64(i%2 + 1),
			Status:          domain.OrderStatusPending,
			TotalAmount:     decimal.RequireFromString(amount),
			ShippingAddress: "a",
			BillingAddress:  "a",
			Items:           []domain.OrderItem{{ProductID: p.ID, Quantity: 1, Price: decimal.New(10, 0)}},
		}
		if err := store.CreateOrder(ctx, &o); err != nil {
			t.Fatal(err)
		}
		out = append(out, o)
	}
	return out
}

func TestMemoryStore_ListOrdersFilterAndPaginate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedOrders(t, store)

	min := decimal.RequireFromString("15")
	got, total, err := store.ListOrders(ctx, domain.OrderFilter{MinAmount: &min})
	if err != nil || total != 2 || len(got) != 2 {
		t.Fatalf("min filter: total %d len %d err %v", total, len(got), err)
	}

	got, total, _ = store.ListOrders(ctx, domain.OrderFilter{UserID: 1})
	if total != 2 {
		t.Fatalf("user filter total %d", total)
	}

	got, total, _ = store.ListOrders(ctx, domain.OrderFilter{Page: 2, PerPage: 2})
	if total != 3 || len(got) != 1 {
		t.Fatalf("pagination: total %d page len %d", total, len(got))
	}
	got, total, _ = store.ListOrders(ctx, domain.OrderFilter{Page: 9, PerPage: 2})
	if total != 3 || len(got) != 0 {
		t.Fatalf("past-the-end page: total %d len %d", total, len(got))
	}
}

func TestMemoryStore_OrderCloneIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := seedOrders(t, store)

	got, err := store.GetOrder(ctx, orders[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Items[0].Quantity = 999

	again, _ := store.GetOrder(ctx, orders[0].ID)
	if again.Items[0].Quantity == 999 {
		t.Fatal("stored order mutated through a returned copy")
	}
}

func TestMemoryStore_CardDefaultLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := &domain.Card{UserID: 1, CardType: "Visa", LastFour: "1111", ExpiryDate: "12/2030", CardholderName: "J", IsDefault: true, SubscriptionID: "S-1"}
	b := &domain.Card{UserID: 1, CardType: "Mastercard", LastFour: "2222", ExpiryDate: "01/2031", CardholderName: "J"}
	for _, c := range []*domain.Card{a, b} {
		if err := store.CreateCard(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.SetDefaultCard(ctx, 1, b.ID); err != nil {
		t.Fatal(err)
	}
	cards, _ := store.ListCards(ctx, 1)
	if len(cards) != 2 || !cards[0].IsDefault || cards[0].ID != b.ID {
		t.Fatalf("default ordering broken: %+v", cards)
	}

	if err := store.DeleteCard(ctx, 1, b.ID); err != nil {
		t.Fatal(err)
	}
	remaining, _ := store.GetCard(ctx, a.ID)
	if !remaining.IsDefault {
		t.Fatal("surviving card not promoted")
	}

	if _, err := store.GetCardBySubscriptionID(ctx, "S-1"); err != nil {
		t.Fatalf("subscription lookup: %v", err)
	}
	if _, err := store.GetCardBySubscriptionID(ctx, ""); !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("empty subscription id must not match, got %v", err)
	}
}

func TestMemoryStore_UpdateCardColumnsRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	c := &domain.Card{UserID: 1, CardType: "Visa", LastFour: "1111", ExpiryDate: "12/2030", CardholderName: "J"}
	if err := store.CreateCard(ctx, c); err != nil {
		t.Fatal(err)
	}

	if _, err := store.UpdateCardColumns(ctx, c.ID, map[string]any{"user_id": int64(2)}); err == nil {
		t.Fatal("unknown column accepted")
	}

	updated, err := store.UpdateCardColumns(ctx, c.ID, map[string]any{
		"expiry_date": "05/2031", "status": "updated",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ExpiryDate != "05/2031" || updated.Status != "updated" {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestMemoryStore_MarkTransmission(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	fresh, err := store.MarkTransmission(ctx, "tx-1")
	if err != nil || !fresh {
		t.Fatalf("first mark: %v %v", fresh, err)
	}
	fresh, err = store.MarkTransmission(ctx, "tx-1")
	if err != nil || fresh {
		t.Fatalf("second mark should be a duplicate: %v %v", fresh, err)
	}

	if err := store.UnmarkTransmission(ctx, "tx-1"); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	fresh, err = store.MarkTransmission(ctx, "tx-1")
	if err != nil || !fresh {
		t.Fatalf("mark after unmark should be fresh: %v %v", fresh, err)
	}
}

func TestMemoryStore_CancelOrderRestocks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := domain.Product{Name: "Widget", Description: "w", Category: "misc", Price: decimal.New(10, 0), Inventory: 5}
	if err := store.CreateProduct(ctx, &p); err != nil {
		t.Fatal(err)
	}
	o := domain.Order{
		UserID: 1, Status: domain.OrderStatusPending,
		TotalAmount:     decimal.New(20, 0),
		ShippingAddress: "a", BillingAddress: "a",
		Items: []domain.OrderItem{{ProductID: p.ID, Quantity: 2, Price: decimal.New(10, 0)}},
	}
	if err := store.CreateOrder(ctx, &o); err != nil {
		t.Fatal(err)
	}

	after, _ := store.GetProduct(ctx, p.ID)
	if after.Inventory != 3 {
		t.Fatalf("inventory after order: %d", after.Inventory)
	}

	if _, err := store.CancelOrder(ctx, o.ID, 1); err != nil {
		t.Fatal(err)
	}
	after, _ = store.GetProduct(ctx, p.ID)
	if after.Inventory != 5 {
		t.Fatalf("inventory after cancel: %d", after.Inventory)
	}

	if _, err := store.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusShipped); !errors.Is(err, port.ErrOrderNotCancellable) {
		t.Fatalf("cancelled order status changed: %v", err)
	}
}

func TestMemoryStore_OrderStatisticsWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedOrders(t, store)

	since := time.Now().UTC().AddDate(0, 0, -6)
	stats, err := store.OrderStatistics(ctx, since, 7)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalOrders != 3 || len(stats.DailyStats) != 7 {
		t.Fatalf("stats %+v", stats)
	}
	if !stats.TotalRevenue.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("revenue %s", stats.TotalRevenue)
	}
}
