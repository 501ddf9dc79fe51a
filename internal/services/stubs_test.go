package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/orderstatus"
)

type stubUnitOfWork struct {
	calls int
}

func (s *stubUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	s.calls++
	return fn(ctx)
}

func (s *stubUnitOfWork) AfterCommit(ctx context.Context, fn func(context.Context)) {
	fn(ctx)
}

type captureNotifier struct {
	placed    []models.Order
	cancelled []models.Order
	err       error
}

func (c *captureNotifier) NotifyNewOrder(_ context.Context, order models.Order) error {
	c.placed = append(c.placed, order)
	return c.err
}

func (c *captureNotifier) NotifyOrderCancelled(_ context.Context, order models.Order) error {
	c.cancelled = append(c.cancelled, order)
	return c.err
}

type memProducts struct {
	byID       map[uuid.UUID]*models.Product
	restored   map[uuid.UUID]int
	batchErr   error
	batchCalls int
	restoreErr error
}

func newMemProducts(products ...models.Product) *memProducts {
	m := &memProducts{byID: map[uuid.UUID]*models.Product{}, restored: map[uuid.UUID]int{}}
	for i := range products {
		p := products[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		m.byID[p.ID] = &p
	}
	return m
}

func (m *memProducts) codeTaken(code string) bool {
	for _, p := range m.byID {
		if p.Code == code {
			return true
		}
	}
	return false
}

func (m *memProducts) FindByID(_ context.Context, id uuid.UUID) (models.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return models.Product{}, apperrors.NotFound("product %s not found", id)
	}
	return *p, nil
}

func (m *memProducts) FindByCode(_ context.Context, code string) (models.Product, error) {
	for _, p := range m.byID {
		if p.Code == code {
			return *p, nil
		}
	}
	return models.Product{}, apperrors.NotFound("product %s not found", code)
}

func (m *memProducts) List(_ context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	var out []models.Product
	for _, p := range m.byID {
		if filter.Active != nil && p.IsActive != *filter.Active {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (m *memProducts) Create(_ context.Context, product *models.Product) error {
	if m.codeTaken(product.Code) {
		return apperrors.DuplicateCode("product code %q already exists", product.Code)
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	p := *product
	m.byID[p.ID] = &p
	return nil
}

func (m *memProducts) CreateBatch(ctx context.Context, products []models.Product) error {
	m.batchCalls++
	if m.batchErr != nil {
		return m.batchErr
	}
	seen := map[string]bool{}
	for _, p := range products {
		if m.codeTaken(p.Code) || seen[p.Code] {
			return apperrors.DuplicateCode("batch contains a product code that already exists")
		}
		seen[p.Code] = true
	}
	for i := range products {
		if err := m.Create(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memProducts) Update(_ context.Context, product *models.Product) error {
	if _, ok := m.byID[product.ID]; !ok {
		return apperrors.NotFound("product %s not found", product.ID)
	}
	for id, p := range m.byID {
		if id != product.ID && p.Code == product.Code {
			return apperrors.DuplicateCode("product code %q already exists", product.Code)
		}
	}
	p := *product
	m.byID[p.ID] = &p
	return nil
}

func (m *memProducts) ToggleActive(_ context.Context, id uuid.UUID) (models.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return models.Product{}, apperrors.NotFound("product %s not found", id)
	}
	p.IsActive = !p.IsActive
	return *p, nil
}

func (m *memProducts) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.byID[id]; !ok {
		return apperrors.NotFound("product %s not found", id)
	}
	delete(m.byID, id)
	return nil
}

func (m *memProducts) Categories(context.Context) ([]string, error) {
	var out []string
	for _, p := range m.byID {
		if !slices.Contains(out, p.Category) {
			out = append(out, p.Category)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memProducts) ReserveStock(_ context.Context, id uuid.UUID, quantity int) error {
	p, ok := m.byID[id]
	if !ok {
		return apperrors.NotFound("product %s not found", id)
	}
	if p.Stock < quantity {
		return apperrors.Validation("insufficient stock for product %s", id)
	}
	p.Stock -= quantity
	return nil
}

func (m *memProducts) RestoreStock(_ context.Context, id uuid.UUID, quantity int) error {
	if m.restoreErr != nil {
		return m.restoreErr
	}
	p, ok := m.byID[id]
	if !ok {
		return apperrors.NotFound("product %s not found", id)
	}
	p.Stock += quantity
	m.restored[id] += quantity
	return nil
}

type memOrders struct {
	byID          map[uuid.UUID]*models.Order
	items         map[uuid.UUID][]models.OrderItem
	itemsErr      map[uuid.UUID]error
	transitionErr error
	transitions   int
	totalUpdates  int
	lastFilter    models.OrderFilter
}

func newMemOrders() *memOrders {
	return &memOrders{
		byID:     map[uuid.UUID]*models.Order{},
		items:    map[uuid.UUID][]models.OrderItem{},
		itemsErr: map[uuid.UUID]error{},
	}
}

// add stores order with the given items; CreatedAt is spaced by insertion.
func (m *memOrders) add(order models.Order, items ...models.OrderItem) models.Order {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(m.byID)) * time.Minute)
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	order.Items = nil
	m.byID[order.ID] = &order
	m.items[order.ID] = items
	return order
}

func (m *memOrders) withItems(order models.Order) models.Order {
	order.Items = slices.Clone(m.items[order.ID])
	return order
}

func (m *memOrders) Create(_ context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	m.add(*order, slices.Clone(order.Items)...)
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id uuid.UUID) (models.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return models.Order{}, apperrors.NotFound("order %s not found", id)
	}
	return m.withItems(*o), nil
}

func (m *memOrders) FindForUpdate(ctx context.Context, id uuid.UUID) (models.Order, error) {
	return m.FindByID(ctx, id)
}

func (m *memOrders) List(_ context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	m.lastFilter = filter
	var out []models.Order
	for _, o := range m.sorted() {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(o.OrderNumber, filter.Search) {
			continue
		}
		out = append(out, m.withItems(o))
	}
	return out, int64(len(out)), nil
}

func (m *memOrders) sorted() []models.Order {
	out := make([]models.Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, *o)
	}
	slices.SortFunc(out, func(a, b models.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

func (m *memOrders) Batch(_ context.Context, after *models.Order, limit int) ([]models.Order, error) {
	all := m.sorted()
	start := 0
	if after != nil {
		start = slices.IndexFunc(all, func(o models.Order) bool { return o.ID == after.ID }) + 1
	}
	end := min(start+limit, len(all))
	return slices.Clone(all[start:end]), nil
}

func (m *memOrders) TransitionStatus(_ context.Context, id uuid.UUID, from, to orderstatus.Status, at time.Time) error {
	if m.transitionErr != nil {
		return m.transitionErr
	}
	o, ok := m.byID[id]
	if !ok || o.Status != from {
		return apperrors.InvalidTransition("order %s is no longer %s", id, from)
	}
	m.transitions++
	o.Status = to
	o.UpdatedAt = at
	if to == orderstatus.Cancelled {
		o.CancelledAt = &at
	}
	return nil
}

func (m *memOrders) Items(_ context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	if err := m.itemsErr[orderID]; err != nil {
		return nil, err
	}
	return slices.Clone(m.items[orderID]), nil
}

func (m *memOrders) UpdateTotal(_ context.Context, id uuid.UUID, old, total decimal.Decimal) error {
	o, ok := m.byID[id]
	if !ok || !o.TotalAmount.Equal(old) {
		return apperrors.InvalidTransition("order %s is missing or its total changed since it was read", id)
	}
	m.totalUpdates++
	o.TotalAmount = total
	return nil
}

func (m *memOrders) Revenue(context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, o := range m.byID {
		if o.Status != orderstatus.Cancelled {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

type memCorrections struct {
	records []models.TotalCorrection
}

func (m *memCorrections) Record(_ context.Context, correction *models.TotalCorrection) error {
	m.records = append(m.records, *correction)
	return nil
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func lineItem(code string, quantity int, lineTotal string) models.OrderItem {
	item := models.OrderItem{ProductCode: code, ProductName: code, Quantity: quantity}
	if lineTotal != "" {
		item.LineTotal = decimal.NewNullDecimal(dec(lineTotal))
	}
	return item
}
