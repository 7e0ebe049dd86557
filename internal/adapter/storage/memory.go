package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MemoryStore is the in-memory implementation of every repository port. It is
// selected by configuration (storage.driver = memory) and used throughout the
// tests. A single mutex stands in for the database's transaction isolation.
type MemoryStore struct {
	mu sync.Mutex

	nextUserID    int64
	nextProductID int64
	nextOrderID   int64
	nextItemID    int64
	nextCardID    int64

	users    map[int64]domain.User
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	cards    map[int64]domain.Card

	transmissions map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextUserID:    1,
		nextProductID: 1,
		nextOrderID:   1,
		nextItemID:    1,
		nextCardID:    1,
		users:         make(map[int64]domain.User),
		products:      make(map[int64]domain.Product),
		orders:        make(map[int64]domain.Order),
		cards:         make(map[int64]domain.Card),
		transmissions: make(map[string]bool),
	}
}

var (
	_ port.UserRepository    = (*MemoryStore)(nil)
	_ port.ProductRepository = (*MemoryStore)(nil)
	_ port.OrderRepository   = (*MemoryStore)(nil)
	_ port.CardRepository    = (*MemoryStore)(nil)
	_ port.DedupStore        = (*MemoryStore)(nil)
)

// Users

func (m *MemoryStore) CreateUser(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("duplicate email %q", u.Email)
		}
		if existing.Username == u.Username {
			return fmt.Errorf("duplicate username %q", u.Username)
		}
	}
	u.ID = m.nextUserID
	m.nextUserID++
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, port.ErrNotFound
}

// Products

func (m *MemoryStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextProductID
	m.nextProductID++
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok {
		return port.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return port.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if f.Category != "" && f.Category != "all" &&
			!strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(p.Name), q) &&
				!strings.Contains(strings.ToLower(p.Description), q) &&
				!strings.Contains(strings.ToLower(p.Category), q) {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListCategories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range m.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Orders

func (m *MemoryStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check every line before touching any inventory so a late failure
	// cannot leave a partial decrement behind.
	for _, it := range o.Items {
		p, ok := m.products[it.ProductID]
		if !ok || p.Inventory < it.Quantity {
			return &port.InsufficientInventoryError{ProductID: it.ProductID}
		}
	}

	now := time.Now().UTC()
	o.ID = m.nextOrderID
	m.nextOrderID++
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Items {
		o.Items[i].ID = m.nextItemID
		m.nextItemID++
		o.Items[i].OrderID = o.ID

		p := m.products[o.Items[i].ProductID]
		p.Inventory -= o.Items[i].Quantity
		p.UpdatedAt = now
		m.products[p.ID] = p
	}

	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

func (m *MemoryStore) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (m *MemoryStore) GetUserOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return nil, port.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (m *MemoryStore) ListUserOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if !f.StartDate.IsZero() && o.CreatedAt.Before(f.StartDate) {
			continue
		}
		if !f.EndDate.IsZero() && o.CreatedAt.After(f.EndDate) {
			continue
		}
		if f.MinAmount != nil && o.TotalAmount.LessThan(*f.MinAmount) {
			continue
		}
		if f.MaxAmount != nil && o.TotalAmount.GreaterThan(*f.MaxAmount) {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) CancelOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return nil, port.ErrNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return nil, port.ErrOrderNotCancellable
	}

	now := time.Now().UTC()
	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = now
	for _, it := range o.Items {
		if p, ok := m.products[it.ProductID]; ok {
			p.Inventory += it.Quantity
			p.UpdatedAt = now
			m.products[p.ID] = p
		}
	}
	m.orders[id] = cloneOrder(o)
	o = cloneOrder(o)
	return &o, nil
}

func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	if o.Status == domain.OrderStatusCancelled {
		return nil, port.ErrOrderNotCancellable
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	m.orders[id] = cloneOrder(o)
	o = cloneOrder(o)
	return &o, nil
}

func (m *MemoryStore) OrderStatistics(ctx context.Context, since time.Time, days int) (*domain.OrderStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &domain.OrderStatistics{
		OrdersByStatus: make(map[domain.OrderStatus]int),
		TotalRevenue:   decimal.Zero,
		AvgOrderValue:  decimal.Zero,
		Days:           days,
	}
	byDay := make(map[string]domain.DailyOrderStats)

	for _, o := range m.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		stats.TotalOrders++
		stats.OrdersByStatus[o.Status]++

		day := o.CreatedAt.Format("2006-01-02")
		ds := byDay[day]
		ds.Date = day
		ds.Orders++
		if o.Status != domain.OrderStatusCancelled {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
			ds.Revenue = ds.Revenue.Add(o.TotalAmount)
		}
		byDay[day] = ds
	}
	if stats.TotalOrders > 0 {
		stats.AvgOrderValue = stats.TotalRevenue.
			Div(decimal.NewFromInt(int64(stats.TotalOrders))).Round(2)
	}

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

// Cards

func (m *MemoryStore) CreateCard(ctx context.Context, c *domain.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.IsDefault {
		for id, other := range m.cards {
			if other.UserID == c.UserID && other.IsDefault {
				other.IsDefault = false
				m.cards[id] = other
			}
		}
	}

	c.ID = m.nextCardID
	m.nextCardID++
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.cards[c.ID] = *c
	return nil
}

func (m *MemoryStore) GetCard(ctx context.Context, id int64) (*domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) GetUserCard(ctx context.Context, userID, id int64) (*domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	if !ok || c.UserID != userID {
		return nil, port.ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) GetCardBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.SubscriptionID != "" && c.SubscriptionID == subscriptionID {
			c := c
			return &c, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *MemoryStore) ListCards(ctx context.Context, userID int64) ([]domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Card
	for _, c := range m.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpdateCardColumns(ctx context.Context, id int64, columns map[string]any) (*domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cards[id]
	if !ok {
		return nil, port.ErrNotFound
	}

	for col, val := range columns {
		switch col {
		case "card_type":
			c.CardType, _ = val.(string)
		case "last_four":
			c.LastFour, _ = val.(string)
		case "expiry_date":
			c.ExpiryDate, _ = val.(string)
		case "cardholder_name":
			c.CardholderName, _ = val.(string)
		case "status":
			c.Status, _ = val.(string)
		case "subscription_id":
			c.SubscriptionID, _ = val.(string)
		case "is_default":
			if b, ok := val.(bool); ok {
				c.IsDefault = b
			}
		default:
			return nil, fmt.Errorf("unknown card column %q", col)
		}
	}
	c.UpdatedAt = time.Now().UTC()
	m.cards[id] = c
	return &c, nil
}

func (m *MemoryStore) SetDefaultCard(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.cards[id]
	if !ok || target.UserID != userID {
		return port.ErrNotFound
	}

	now := time.Now().UTC()
	for cid, c := range m.cards {
		if c.UserID != userID {
			continue
		}
		was := c.IsDefault
		c.IsDefault = cid == id
		if c.IsDefault != was {
			c.UpdatedAt = now
		}
		m.cards[cid] = c
	}
	return nil
}

func (m *MemoryStore) DeleteCard(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cards[id]
	if !ok || c.UserID != userID {
		return port.ErrNotFound
	}
	delete(m.cards, id)

	if c.IsDefault {
		var lowest int64
		for cid, other := range m.cards {
			if other.UserID == userID && (lowest == 0 || cid < lowest) {
				lowest = cid
			}
		}
		if lowest != 0 {
			promoted := m.cards[lowest]
			promoted.IsDefault = true
			promoted.UpdatedAt = time.Now().UTC()
			m.cards[lowest] = promoted
		}
	}
	return nil
}

// Webhook dedup

func (m *MemoryStore) MarkTransmission(ctx context.Context, transmissionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transmissions[transmissionID] {
		return false, nil
	}
	m.transmissions[transmissionID] = true
	return true, nil
}

func (m *MemoryStore) UnmarkTransmission(ctx context.Context, transmissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transmissions, transmissionID)
	return nil
}
