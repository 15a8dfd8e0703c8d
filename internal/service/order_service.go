package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"commerce-backoffice/internal/broker"
	"commerce-backoffice/internal/idgen"
	"commerce-backoffice/internal/models"
	"commerce-backoffice/internal/store"
	"commerce-backoffice/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// gstPattern matches the Indian GSTIN shape: state code, PAN, entity digit,
// literal Z, checksum.
var gstPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// OrderService handles order intake
type OrderService struct {
	store               Store
	cache               Cache
	numbers             *idgen.Generator
	publisher           *broker.EventPublisher
	defaultDeliveryDays int
	logger              *zap.Logger
}

// NewOrderService creates a new order service. cache and publisher may be
// nil; both are best-effort collaborators.
func NewOrderService(st Store, cache Cache, publisher *broker.EventPublisher, defaultDeliveryDays int) *OrderService {
	if defaultDeliveryDays <= 0 {
		defaultDeliveryDays = 3
	}
	return &OrderService{
		store:               st,
		cache:               cache,
		numbers:             idgen.NewGenerator(st),
		publisher:           publisher,
		defaultDeliveryDays: defaultDeliveryDays,
		logger:              util.GetLogger(),
	}
}

// CreateOrderRequest carries the inbound order payload. Field names follow
// the storefront wire contract.
type CreateOrderRequest struct {
	Items         []OrderItemRequest `json:"orderItems" binding:"required,min=1,dive"`
	Phone         string             `json:"phone" binding:"required"`
	Address       string             `json:"address" binding:"required"`
	IsPaid        *bool              `json:"isPaid"`
	IsCompleted   *bool              `json:"isCompleted"`
	GSTNumber     string             `json:"gstNumber"`
	Discount      float64            `json:"discount"`
	ZipCode       string             `json:"zipCode"`
	CustomerID    string             `json:"customerId"`
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
}

// OrderItemRequest is one requested line; name and prices are snapshotted
// onto the order item as supplied.
type OrderItemRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Price     int64  `json:"price"`
	MRP       int64  `json:"mrp"`
	Name      string `json:"name"`
}

// CreateOrderResponse is the intake confirmation
type CreateOrderResponse struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
}

// CreateOrder runs the intake workflow: validate, resolve variants, advisory
// stock pre-check, delivery estimate, number generation, then one
// transaction persisting the order, its items, and every stock reservation.
func (s *OrderService) CreateOrder(ctx context.Context, storeID string, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if len(req.Items) == 0 || req.Phone == "" || req.Address == "" {
		util.OrdersFailedTotal.WithLabelValues("missing_fields").Inc()
		return nil, &ValidationError{Reason: "orderItems, phone and address are required"}
	}

	st, err := s.store.FindStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up store: %w", err)
	}
	if st == nil {
		util.OrdersFailedTotal.WithLabelValues("store_not_found").Inc()
		return nil, &NotFoundError{Resource: "store", ID: storeID}
	}

	variants, err := s.resolveVariants(ctx, storeID, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	// Advisory pre-check; the authoritative check-and-decrement happens
	// inside CreateOrderTx.
	for _, item := range req.Items {
		available := variants[item.VariantID].Stock
		if s.cache != nil {
			if cached, ok, cerr := s.cache.GetStock(ctx, item.VariantID); cerr == nil && ok {
				available = cached
			}
		}
		if item.Quantity > available {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, &InsufficientStockError{
				VariantID: item.VariantID,
				Requested: item.Quantity,
				Available: available,
			}
		}
	}

	if req.GSTNumber != "" && !gstPattern.MatchString(req.GSTNumber) {
		util.OrdersFailedTotal.WithLabelValues("invalid_gst").Inc()
		return nil, &ValidationError{Reason: "invalid GST number format"}
	}

	deliveryDays := s.resolveDeliveryDays(ctx, storeID, req.ZipCode)

	order, err := s.createWithFreshNumbers(ctx, storeID, req, variants, deliveryDays)
	if err != nil {
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("store_id", storeID))

	s.publishOrderCreated(ctx, order)

	return &CreateOrderResponse{ID: order.ID, OrderNumber: order.OrderNumber}, nil
}

// createWithFreshNumbers generates display numbers and persists the order.
// A unique-constraint violation on the numbers means a concurrent generator
// drew the same suffix after our read; regenerate once and retry.
func (s *OrderService) createWithFreshNumbers(
	ctx context.Context,
	storeID string,
	req *CreateOrderRequest,
	variants map[string]models.Variant,
	deliveryDays int,
) (*models.Order, error) {
	start := time.Now()
	defer func() {
		util.ReservationLatency.Observe(time.Since(start).Seconds())
	}()

	for attempt := 0; ; attempt++ {
		orderNumber, err := s.numbers.GenerateOrderNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("order number generation failed: %w", err)
		}
		invoiceNumber, err := s.numbers.GenerateInvoiceNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("invoice number generation failed: %w", err)
		}

		order := &models.Order{
			ID:                    uuid.New().String(),
			StoreID:               storeID,
			OrderNumber:           orderNumber,
			InvoiceNumber:         invoiceNumber,
			Status:                models.OrderStatusPending,
			IsPaid:                req.IsPaid != nil && *req.IsPaid,
			IsCompleted:           req.IsCompleted != nil && *req.IsCompleted,
			Phone:                 req.Phone,
			Address:               req.Address,
			ZipCode:               req.ZipCode,
			GSTNumber:             req.GSTNumber,
			Discount:              req.Discount,
			EstimatedDeliveryDays: deliveryDays,
			CustomerID:            req.CustomerID,
			CustomerName:          req.CustomerName,
			CustomerEmail:         req.CustomerEmail,
		}

		items := make([]models.OrderItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, models.OrderItem{
				ID:        uuid.New().String(),
				VariantID: it.VariantID,
				Quantity:  it.Quantity,
				Price:     it.Price,
				MRP:       it.MRP,
				Name:      it.Name,
			})
		}

		err = s.store.CreateOrderTx(ctx, order, items)
		if err == nil {
			return order, nil
		}

		var conflict *store.StockConflictError
		if errors.As(err, &conflict) {
			util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, &InsufficientStockError{
				VariantID: conflict.VariantID,
				Requested: conflict.Requested,
				Available: variants[conflict.VariantID].Stock,
			}
		}

		if errors.Is(err, store.ErrDuplicateNumber) && attempt == 0 {
			s.logger.Warn("Display number taken at insert, regenerating",
				zap.String("order_number", orderNumber),
				zap.String("invoice_number", invoiceNumber))
			continue
		}

		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
}

// resolveVariants batch-loads the referenced variants and checks each one
// exists and belongs to the store's catalog.
func (s *OrderService) resolveVariants(ctx context.Context, storeID string, items []OrderItemRequest) (map[string]models.Variant, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !seen[it.VariantID] {
			seen[it.VariantID] = true
			ids = append(ids, it.VariantID)
		}
	}

	variants, err := s.store.FindVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up variants: %w", err)
	}

	byID := make(map[string]models.Variant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	for _, id := range ids {
		v, ok := byID[id]
		if !ok || v.StoreID != storeID {
			return nil, &ValidationError{Reason: fmt.Sprintf("variant not found in store catalog: %s", id)}
		}
	}
	return byID, nil
}

// resolveDeliveryDays looks up the pincode's delivery estimate, read-through
// cached, defaulting when the pincode is unknown or carries no estimate.
func (s *OrderService) resolveDeliveryDays(ctx context.Context, storeID, zipCode string) int {
	if zipCode == "" {
		return s.defaultDeliveryDays
	}

	if s.cache != nil {
		if days, ok, err := s.cache.GetDeliveryDays(ctx, storeID, zipCode); err == nil && ok {
			return days
		}
	}

	days := s.defaultDeliveryDays
	loc, err := s.store.FindLocationByPincode(ctx, storeID, zipCode)
	if err != nil {
		s.logger.Warn("Delivery location lookup failed, using default",
			zap.String("store_id", storeID),
			zap.String("pincode", zipCode),
			zap.Error(err))
		return days
	}
	if loc != nil && loc.DeliveryDays > 0 {
		days = loc.DeliveryDays
	}

	if s.cache != nil {
		if err := s.cache.SetDeliveryDays(ctx, storeID, zipCode, days); err != nil {
			s.logger.Warn("Failed to cache delivery days", zap.Error(err))
		}
	}
	return days
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}

	itemData := make([]models.OrderItemData, 0, len(order.Items))
	for _, it := range order.Items {
		itemData = append(itemData, models.OrderItemData{
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		StoreID:     order.StoreID,
		OrderNumber: order.OrderNumber,
		Items:       itemData,
	}

	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

// ListCustomerOrders returns a customer's orders newest first, each with its
// item snapshots.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.store.GetOrderItemsByOrderID(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// VariantStock reports current stock for a variant, served from the cache
// when warm.
func (s *OrderService) VariantStock(ctx context.Context, storeID, variantID string) (int, error) {
	if s.cache != nil {
		if stock, ok, err := s.cache.GetStock(ctx, variantID); err == nil && ok {
			return stock, nil
		}
	}

	variants, err := s.store.FindVariantsByIDs(ctx, []string{variantID})
	if err != nil {
		return 0, err
	}
	if len(variants) == 0 || variants[0].StoreID != storeID {
		return 0, &NotFoundError{Resource: "variant", ID: variantID}
	}

	if s.cache != nil {
		if err := s.cache.SetStock(ctx, variantID, variants[0].Stock); err != nil {
			s.logger.Warn("Failed to cache variant stock", zap.Error(err))
		}
	}
	return variants[0].Stock, nil
}
