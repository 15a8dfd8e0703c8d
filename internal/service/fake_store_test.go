package service

import (
	"context"
	"fmt"
	"sync"

	"commerce-backoffice/internal/models"
	"commerce-backoffice/internal/store"
)

// fakeStore is an in-memory Store with the same transactional semantics as
// the real one: order creation applies everything or nothing, and the paid
// flip is gated on the current isPaid value.
type fakeStore struct {
	mu sync.Mutex

	stores    map[string]*models.Store
	variants  map[string]*models.Variant
	locations map[string]*models.Location // storeID + "|" + pincode
	orders    map[string]*models.Order
	items     map[string][]models.OrderItem

	orderNumbers   map[string]bool
	invoiceNumbers map[string]bool

	// failure injection
	duplicateNumberOnce bool
	conflictVariantID   string
	fulfillErrVariantID string

	createAttempts  int
	markPaidCalls   int
	fulfilledCalls  int
	releasedHeldArg []bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stores:         make(map[string]*models.Store),
		variants:       make(map[string]*models.Variant),
		locations:      make(map[string]*models.Location),
		orders:         make(map[string]*models.Order),
		items:          make(map[string][]models.OrderItem),
		orderNumbers:   make(map[string]bool),
		invoiceNumbers: make(map[string]bool),
	}
}

func (f *fakeStore) addStore(id string) {
	f.stores[id] = &models.Store{ID: id, Name: "store " + id}
}

func (f *fakeStore) addVariant(id, storeID string, stock int) {
	f.variants[id] = &models.Variant{ID: id, ProductID: "p-" + id, StoreID: storeID, Name: "variant " + id, Stock: stock}
}

func (f *fakeStore) addLocation(storeID, pincode string, deliveryDays int) {
	f.locations[storeID+"|"+pincode] = &models.Location{
		ID: "loc-" + pincode, StoreID: storeID, Pincode: pincode,
		GroupID: "grp-" + pincode, DeliveryDays: deliveryDays,
	}
}

func (f *fakeStore) stock(variantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.variants[variantID].Stock
}

func (f *fakeStore) FindStore(_ context.Context, id string) (*models.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores[id], nil
}

func (f *fakeStore) FindVariantsByIDs(_ context.Context, ids []string) ([]models.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := f.variants[id]; ok {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeStore) FindLocationByPincode(_ context.Context, storeID, pincode string) (*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locations[storeID+"|"+pincode], nil
}

func (f *fakeStore) FindOrderByID(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) OrderNumberExists(_ context.Context, n string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orderNumbers[n], nil
}

func (f *fakeStore) InvoiceNumberExists(_ context.Context, n string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invoiceNumbers[n], nil
}

func (f *fakeStore) CreateOrderTx(_ context.Context, order *models.Order, items []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createAttempts++

	if f.duplicateNumberOnce {
		f.duplicateNumberOnce = false
		return fmt.Errorf("%w: orders_order_number_key", store.ErrDuplicateNumber)
	}

	// Check every reservation before applying any, all-or-nothing.
	for _, it := range items {
		v, ok := f.variants[it.VariantID]
		if !ok || v.Stock < it.Quantity || it.VariantID == f.conflictVariantID {
			return &store.StockConflictError{VariantID: it.VariantID, Requested: it.Quantity}
		}
	}

	for i := range items {
		items[i].OrderID = order.ID
		f.variants[items[i].VariantID].Stock -= items[i].Quantity
	}

	order.Items = items
	cp := *order
	f.orders[order.ID] = &cp
	f.items[order.ID] = items
	f.orderNumbers[order.OrderNumber] = true
	f.invoiceNumbers[order.InvoiceNumber] = true
	return nil
}

func (f *fakeStore) MarkOrderPaid(_ context.Context, orderID, address, phone string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.markPaidCalls++

	o, ok := f.orders[orderID]
	if !ok {
		return "", false, fmt.Errorf("order not found: %s", orderID)
	}
	if o.IsPaid {
		return o.Status, true, nil
	}

	prev := o.Status
	o.IsPaid = true
	o.IsCompleted = true
	o.Status = models.OrderStatusPaid
	o.Address = address
	o.Phone = phone
	return prev, false, nil
}

func (f *fakeStore) SetFulfilled(_ context.Context, variantID string, quantity int, reservationHeld bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fulfilledCalls++
	f.releasedHeldArg = append(f.releasedHeldArg, reservationHeld)

	if variantID == f.fulfillErrVariantID {
		return fmt.Errorf("variant not found: %s", variantID)
	}

	v, ok := f.variants[variantID]
	if !ok {
		return fmt.Errorf("variant not found: %s", variantID)
	}

	if reservationHeld {
		if v.Stock < 0 {
			v.Stock = 0
		}
		return nil
	}

	v.Stock -= quantity
	if v.Stock < 0 {
		v.Stock = 0
	}
	return nil
}

func (f *fakeStore) GetOrderItemsByOrderID(_ context.Context, orderID string) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[orderID], nil
}

func (f *fakeStore) ListOrdersByCustomer(_ context.Context, customerID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}
