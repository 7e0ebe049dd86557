package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled in its current state")
	ErrOrderCancelled      = errors.New("cannot change status of a cancelled order")
	ErrInvalidOrderStatus  = errors.New("invalid status value")
)

// InsufficientInventoryError carries the offending product's name for the
// caller-facing message.
type InsufficientInventoryError struct {
	ProductName string
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough inventory for %s", e.ProductName)
}

// ProductNotFoundError is returned when an order line references a product
// that does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID %d not found", e.ProductID)
}

type OrderService struct {
	orders   port.OrderRepository
	products port.ProductRepository
}

func NewOrderService(orders port.OrderRepository, products port.ProductRepository) *OrderService {
	return &OrderService{orders: orders, products: products}
}

type OrderItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items"`
	ShippingAddress string           `json:"shipping_address"`
	BillingAddress  string           `json:"billing_address"`
}

// CreateOrder validates every line item before any write, snapshots unit
// prices, and persists order, items, and inventory decrements atomically.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*domain.Order, error) {
	fields := make(map[string]string)
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 || it.Quantity < 1 {
			fields["items"] = "product_id and quantity must be positive"
			break
		}
	}
	if in.ShippingAddress == "" {
		fields["shipping_address"] = "shipping address is required"
	}
	if in.BillingAddress == "" {
		fields["billing_address"] = "billing address is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	total := decimal.Zero
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		product, err := s.products.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, port.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: it.ProductID}
			}
			return nil, fmt.Errorf("load product %d: %w", it.ProductID, err)
		}
		if product.Inventory < it.Quantity {
			return nil, &InsufficientInventoryError{ProductName: product.Name}
		}
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Quantity:  it.Quantity,
			Price:     product.Price,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	order := &domain.Order{
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Items:           items,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		var short *port.InsufficientInventoryError
		if errors.As(err, &short) {
			// The authoritative in-transaction check lost a race with a
			// concurrent order; report it with the product name.
			name := fmt.Sprintf("product %d", short.ProductID)
			if p, perr := s.products.GetProduct(ctx, short.ProductID); perr == nil {
				name = p.Name
			}
			return nil, &InsufficientInventoryError{ProductName: name}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func (s *OrderService) GetUserOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	o, err := s.orders.GetUserOrder(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.orders.ListUserOrders(ctx, userID)
}

func (s *OrderService) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	return s.orders.ListOrders(ctx, f)
}

// CancelOrder cancels a pending order owned by userID and restores the
// inventory of every line item.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	o, err := s.orders.CancelOrder(ctx, orderID, userID)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrNotFound):
			return nil, ErrOrderNotFound
		case errors.Is(err, port.ErrOrderNotCancellable):
			return nil, ErrOrderNotCancellable
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	return o, nil
}

// UpdateStatus is the admin status transition. A cancelled order never
// changes status again.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidOrderStatus(status) {
		return nil, ErrInvalidOrderStatus
	}
	o, err := s.orders.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrNotFound):
			return nil, ErrOrderNotFound
		case errors.Is(err, port.ErrOrderNotCancellable):
			return nil, ErrOrderCancelled
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return o, nil
}

// Statistics aggregates order counts and revenue over the trailing window.
func (s *OrderService) Statistics(ctx context.Context, days int) (*domain.OrderStatistics, error) {
	if days < 1 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.orders.OrderStatistics(ctx, since, days)
}

// TrackingStep is one stage of an order's fulfilment timeline.
type TrackingStep struct {
	Status    string  `json:"status"`
	Completed bool    `json:"completed"`
	Date      *string `json:"date"`
}

type TrackingInfo struct {
	OrderID           int64          `json:"order_id"`
	Status            string         `json:"status"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
	EstimatedDelivery *string        `json:"estimated_delivery"`
	TrackingSteps     []TrackingStep `json:"tracking_steps"`
}

// Track synthesizes a tracking timeline from the order's status and
// timestamps; there is no carrier integration behind it.
func (s *OrderService) Track(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*TrackingInfo, error) {
	var o *domain.Order
	var err error
	if isAdmin {
		o, err = s.orders.GetOrder(ctx, orderID)
	} else {
		o, err = s.orders.GetUserOrder(ctx, orderID, userID)
	}
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	iso := func(t time.Time) *string {
		s := t.Format(time.RFC3339)
		return &s
	}

	info := &TrackingInfo{
		OrderID:   o.ID,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
		UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
	}

	info.TrackingSteps = append(info.TrackingSteps, TrackingStep{
		Status: "Order Placed", Completed: true, Date: iso(o.CreatedAt),
	})

	processing := o.Status == domain.OrderStatusProcessing ||
		o.Status == domain.OrderStatusShipped || o.Status == domain.OrderStatusDelivered
	if processing {
		info.TrackingSteps = append(info.TrackingSteps, TrackingStep{
			Status: "Processing", Completed: true, Date: iso(o.CreatedAt.AddDate(0, 0, 1)),
		})
	} else {
		info.TrackingSteps = append(info.TrackingSteps, TrackingStep{Status: "Processing"})
	}

	shipped := o.Status == domain.OrderStatusShipped || o.Status == domain.OrderStatusDelivered
	if shipped {
		info.TrackingSteps = append(info.TrackingSteps, TrackingStep{
			Status: "Shipped", Completed: true, Date: iso(o.CreatedAt.AddDate(0, 0, 2)),
		})
		info.EstimatedDelivery = iso(o.CreatedAt.AddDate(0, 0, 5))
	} else {
		info.TrackingSteps = append(info.TrackingSteps, TrackingStep{Status: "Shipped"})
	}

	if o.Status == domain.OrderStatusDelivered {
		info.TrackingSteps = append(info.TrackingSteps, TrackingStep{
			Status: "Delivered", Completed: true, Date: iso(o.UpdatedAt),
		})
	} else {
		info.TrackingSteps = append(info.TrackingSteps, TrackingStep{Status: "Delivered"})
	}

	if o.Status == domain.OrderStatusCancelled {
		info.TrackingSteps = append(info.TrackingSteps, TrackingStep{
			Status: "Cancelled", Completed: true, Date: iso(o.UpdatedAt),
		})
	}

	return info, nil
}
