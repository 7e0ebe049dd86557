package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

// ErrNotFound is returned by repositories when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// InsufficientInventoryError is returned by OrderRepository.CreateOrder when a
// line item cannot be satisfied. The whole order is rolled back.
type InsufficientInventoryError struct {
	ProductID int64
}

func (e *InsufficientInventoryError) Error() string {
	return "insufficient inventory"
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

type OrderRepository interface {
	// CreateOrder persists the order and its items and decrements inventory
	// for every line inside a single transaction. Returns
	// *InsufficientInventoryError when any decrement would go negative.
	CreateOrder(ctx context.Context, o *domain.Order) error

	GetOrder(ctx context.Context, id int64) (*domain.Order, error)

	// GetUserOrder returns the order only when it belongs to userID.
	GetUserOrder(ctx context.Context, id, userID int64) (*domain.Order, error)

	ListUserOrders(ctx context.Context, userID int64) ([]domain.Order, error)

	// ListOrders returns a page of orders plus the unpaged total count.
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error)

	// CancelOrder moves a pending order to cancelled and restores inventory
	// for every item, atomically. Returns domain-level state via error:
	// ErrNotFound when absent, ErrOrderNotCancellable otherwise.
	CancelOrder(ctx context.Context, id, userID int64) (*domain.Order, error)

	// UpdateOrderStatus sets the status unless the order is cancelled.
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error)

	OrderStatistics(ctx context.Context, since time.Time, days int) (*domain.OrderStatistics, error)
}

// ErrOrderNotCancellable is returned when cancellation is attempted from any
// status other than pending, or a status change targets a cancelled order.
var ErrOrderNotCancellable = errors.New("order cannot be changed in its current state")

type CardRepository interface {
	// CreateCard inserts the card. When c.IsDefault is set, all other
	// defaults for the user are cleared in the same transaction.
	CreateCard(ctx context.Context, c *domain.Card) error

	GetCard(ctx context.Context, id int64) (*domain.Card, error)

	// GetUserCard returns the card only when it belongs to userID.
	GetUserCard(ctx context.Context, userID, id int64) (*domain.Card, error)

	GetCardBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Card, error)

	// ListCards returns the user's cards, default first.
	ListCards(ctx context.Context, userID int64) ([]domain.Card, error)

	// UpdateCardColumns applies a single multi-column update and returns the
	// refreshed record. Callers are responsible for column allow-listing.
	UpdateCardColumns(ctx context.Context, id int64, columns map[string]any) (*domain.Card, error)

	// SetDefaultCard clears the default flag for all of the user's cards and
	// sets it on the target, in one transaction.
	SetDefaultCard(ctx context.Context, userID, id int64) error

	// DeleteCard removes the card. If it was the default and other cards
	// remain, one of them is promoted in the same transaction.
	DeleteCard(ctx context.Context, userID, id int64) error
}

// DedupStore records webhook transmission ids so replayed deliveries can be
// acknowledged without side effects.
type DedupStore interface {
	// MarkTransmission returns false when the id was already seen.
	MarkTransmission(ctx context.Context, transmissionID string) (bool, error)

	// UnmarkTransmission releases a previously marked id so the provider's
	// retry of a delivery that failed mid-processing is not swallowed as a
	// duplicate.
	UnmarkTransmission(ctx context.Context, transmissionID string) error
}
