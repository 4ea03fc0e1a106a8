package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- products ---

type mockProductRepo struct {
	products   map[uuid.UUID]*model.Product
	lastFilter repository.ProductFilter
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	for _, existing := range m.products {
		if existing.SKU == p.SKU || existing.Slug == p.Slug {
			return repository.ErrDuplicateProduct
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	stored := *p
	m.products[p.ID] = &stored
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) GetBySlug(_ context.Context, slug string) (*model.Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) List(_ context.Context, f repository.ProductFilter) ([]model.Product, int, error) {
	m.lastFilter = f
	var all []model.Product
	for _, p := range m.products {
		if f.IsActive != nil && p.IsActive != *f.IsActive {
			continue
		}
		if f.IsFeatured != nil && p.IsFeatured != *f.IsFeatured {
			continue
		}
		if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return all[f.Offset:end], total, nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *p
	m.products[p.ID] = &stored
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) add(p model.Product) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.products[p.ID] = &p
	return p.ID
}

// --- category ---

type mockCategoryRepo struct {
	categories map[uuid.UUID]*model.Category
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{categories: make(map[uuid.UUID]*model.Category)}
}

func (m *mockCategoryRepo) Create(_ context.Context, c *model.Category) error {
	for _, existing := range m.categories {
		if existing.Name == c.Name || existing.Slug == c.Slug {
			return repository.ErrDuplicateCategory
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	stored := *c
	m.categories[c.ID] = &stored
	return nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockCategoryRepo) List(_ context.Context) ([]model.Category, error) {
	var all []model.Category
	for _, c := range m.categories {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (m *mockCategoryRepo) add(name string) uuid.UUID {
	c := model.Category{ID: uuid.New(), Name: name, Slug: Slugify(name)}
	m.categories[c.ID] = &c
	return c.ID
}

// --- cart ---

type mockCartRepo struct {
	items map[uuid.UUID]*model.CartItem
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{items: make(map[uuid.UUID]*model.CartItem)}
}

func (m *mockCartRepo) GetItems(_ context.Context, userID uuid.UUID) ([]model.CartItem, error) {
	var items []model.CartItem
	for _, item := range m.items {
		if item.UserID == userID {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (m *mockCartRepo) GetItem(_ context.Context, userID, itemID uuid.UUID) (*model.CartItem, error) {
	item, ok := m.items[itemID]
	if !ok || item.UserID != userID {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, item *model.CartItem) error {
	for _, existing := range m.items {
		if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
			existing.Quantity += item.Quantity
			item.ID = existing.ID
			item.Quantity = existing.Quantity
			item.Price = existing.Price
			return nil
		}
	}
	item.ID = uuid.New()
	stored := *item
	m.items[item.ID] = &stored
	return nil
}

func (m *mockCartRepo) UpdateQuantity(_ context.Context, userID, itemID uuid.UUID, quantity int) error {
	item, ok := m.items[itemID]
	if !ok || item.UserID != userID {
		return repository.ErrNotFound
	}
	item.Quantity = quantity
	return nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, userID, itemID uuid.UUID) error {
	item, ok := m.items[itemID]
	if !ok || item.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, userID uuid.UUID) error {
	for id, item := range m.items {
		if item.UserID == userID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *mockCartRepo) count(userID uuid.UUID) int {
	n := 0
	for _, item := range m.items {
		if item.UserID == userID {
			n++
		}
	}
	return n
}

// --- orders ---

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*model.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, number string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (m *mockOrderRepo) Update(_ context.Context, id uuid.UUID, fn func(*model.Order) error) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	if err := fn(&cp); err != nil {
		return nil, err
	}
	m.orders[id] = &cp
	out := cp
	return &out, nil
}

func (m *mockOrderRepo) put(o model.Order) *model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.orders[o.ID] = &o
	return &o
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// --- checkout ---

// mockCheckoutStore runs each transaction under one lock and restores a
// snapshot of products, cart items and orders when fn fails.
type mockCheckoutStore struct {
	mu       sync.Mutex
	products *mockProductRepo
	carts    *mockCartRepo
	orders   *mockOrderRepo

	// decrementErr makes DecrementStock fail for the given product.
	decrementErr map[uuid.UUID]error
	txCount      int
}

func newMockCheckoutStore(products *mockProductRepo, carts *mockCartRepo, orders *mockOrderRepo) *mockCheckoutStore {
	return &mockCheckoutStore{
		products:     products,
		carts:        carts,
		orders:       orders,
		decrementErr: make(map[uuid.UUID]error),
	}
}

func (s *mockCheckoutStore) WithinTx(_ context.Context, fn func(tx repository.CheckoutTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	products := make(map[uuid.UUID]model.Product, len(s.products.products))
	for id, p := range s.products.products {
		products[id] = *p
	}
	items := make(map[uuid.UUID]model.CartItem, len(s.carts.items))
	for id, item := range s.carts.items {
		items[id] = *item
	}
	s.orders.mu.Lock()
	orders := make(map[uuid.UUID]*model.Order, len(s.orders.orders))
	for id, o := range s.orders.orders {
		orders[id] = o
	}
	s.orders.mu.Unlock()

	if err := fn(&mockCheckoutTx{store: s}); err != nil {
		s.products.products = make(map[uuid.UUID]*model.Product, len(products))
		for id, p := range products {
			s.products.products[id] = &p
		}
		s.carts.items = make(map[uuid.UUID]*model.CartItem, len(items))
		for id, item := range items {
			s.carts.items[id] = &item
		}
		s.orders.mu.Lock()
		s.orders.orders = orders
		s.orders.mu.Unlock()
		return err
	}
	return nil
}

type mockCheckoutTx struct {
	store *mockCheckoutStore
}

func (tx *mockCheckoutTx) LockProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	out := make(map[uuid.UUID]*model.Product, len(ids))
	for _, id := range ids {
		if p, ok := tx.store.products.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (tx *mockCheckoutTx) DecrementStock(_ context.Context, productID uuid.UUID, quantity int) error {
	if err := tx.store.decrementErr[productID]; err != nil {
		return err
	}
	p, ok := tx.store.products.products[productID]
	if !ok || p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (tx *mockCheckoutTx) InsertOrder(_ context.Context, o *model.Order) error {
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = uuid.New()
		o.Items[i].OrderID = o.ID
		o.Items[i].CreatedAt = o.CreatedAt
	}
	tx.store.orders.put(*o)
	return nil
}

func (tx *mockCheckoutTx) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return tx.store.carts.Clear(ctx, userID)
}

// --- payment events ---

type mockPaymentEventRepo struct {
	events []model.PaymentEvent
}

func (m *mockPaymentEventRepo) Record(_ context.Context, e *model.PaymentEvent) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockPaymentEventRepo) ListByReference(_ context.Context, ref string) ([]model.PaymentEvent, error) {
	var out []model.PaymentEvent
	for _, e := range m.events {
		if e.ExternalReference == ref {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- publisher ---

type mockPublisher struct {
	mu            sync.Mutex
	placed        []model.OrderPlacedMessage
	notifications []model.PaymentNotification
	err           error
}

func (m *mockPublisher) PublishOrderPlaced(_ context.Context, msg model.OrderPlacedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.placed = append(m.placed, msg)
	return nil
}

func (m *mockPublisher) PublishPaymentNotification(_ context.Context, n model.PaymentNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.notifications = append(m.notifications, n)
	return nil
}
