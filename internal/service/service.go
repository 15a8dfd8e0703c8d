package service

import (
	"context"

	"commerce-backoffice/internal/models"
)

// Store is the persistence surface the workflows consume, kept independent
// of the concrete data-access technology. *store.Store implements it.
type Store interface {
	FindStore(ctx context.Context, id string) (*models.Store, error)
	FindVariantsByIDs(ctx context.Context, ids []string) ([]models.Variant, error)
	FindLocationByPincode(ctx context.Context, storeID, pincode string) (*models.Location, error)
	FindOrderByID(ctx context.Context, id string) (*models.Order, error)
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	InvoiceNumberExists(ctx context.Context, number string) (bool, error)

	// CreateOrderTx persists order + items + per-item stock reservations
	// atomically; partial application is disallowed.
	CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem) error

	// MarkOrderPaid flips isPaid/isCompleted exactly once, checking the
	// idempotency gate in the same transaction. Returns the prior status.
	MarkOrderPaid(ctx context.Context, orderID, address, phone string) (prevStatus string, alreadyPaid bool, err error)

	SetFulfilled(ctx context.Context, variantID string, quantity int, reservationHeld bool) error
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
}

// Cache is the advisory read cache in front of the store. Implementations
// are never authoritative for stock; misses and errors fall through to the
// store. A nil Cache is valid and disables caching.
type Cache interface {
	GetStock(ctx context.Context, variantID string) (stock int, ok bool, err error)
	SetStock(ctx context.Context, variantID string, stock int) error
	GetDeliveryDays(ctx context.Context, storeID, pincode string) (days int, ok bool, err error)
	SetDeliveryDays(ctx context.Context, storeID, pincode string, days int) error
}
