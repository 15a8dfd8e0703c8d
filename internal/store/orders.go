package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"commerce-backoffice/internal/models"

	"github.com/lib/pq"
)

// CreateOrderTx persists an order, its items, and the stock reservation for
// every item in one transaction. Any failed reservation rolls the whole
// order back; no partial stock decrement is observable.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (
			id, store_id, order_number, invoice_number, status,
			is_paid, is_completed, phone, address, zip_code, gst_number,
			discount, estimated_delivery_days,
			customer_id, customer_name, customer_email
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING *`,
		order.ID, order.StoreID, order.OrderNumber, order.InvoiceNumber, order.Status,
		order.IsPaid, order.IsCompleted, order.Phone, order.Address, order.ZipCode, order.GSTNumber,
		order.Discount, order.EstimatedDeliveryDays,
		order.CustomerID, order.CustomerName, order.CustomerEmail)
	if err != nil {
		return classifyInsertErr(err)
	}

	for i := range items {
		item := &items[i]
		item.OrderID = order.ID

		if err := reserveStockTx(ctx, tx, item.VariantID, item.Quantity); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, variant_id, quantity, price, mrp, name)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.OrderID, item.VariantID, item.Quantity, item.Price, item.MRP, item.Name)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyInsertErr(err)
	}
	order.Items = items
	return nil
}

// classifyInsertErr maps a unique violation on the display-number columns to
// ErrDuplicateNumber so the caller can regenerate and retry.
func classifyInsertErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" &&
		(strings.Contains(pqErr.Constraint, "order_number") || strings.Contains(pqErr.Constraint, "invoice_number")) {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, pqErr.Constraint)
	}
	return err
}

// FindOrderByID retrieves an order by ID, nil if absent
func (s *Store) FindOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderNumberExists reports whether any persisted order uses the number
func (s *Store) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)", number)
	return exists, err
}

// InvoiceNumberExists reports whether any persisted order uses the number
func (s *Store) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE invoice_number = $1)", number)
	return exists, err
}

// MarkOrderPaid flips an order to paid/completed exactly once. The row lock
// makes the idempotency check and the update one atomic step, so duplicate
// deliveries of the same notification cannot both pass the gate. Returns the
// status the order held before the flip.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID, address, phone string) (prevStatus string, alreadyPaid bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	var cur struct {
		Status string `db:"status"`
		IsPaid bool   `db:"is_paid"`
	}
	err = tx.GetContext(ctx, &cur,
		"SELECT status, is_paid FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("order not found: %s", orderID)
	}
	if err != nil {
		return "", false, err
	}

	if cur.IsPaid {
		return cur.Status, true, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET is_paid = TRUE, is_completed = TRUE, status = $1,
		    address = $2, phone = $3, updated_at = NOW()
		WHERE id = $4`,
		models.OrderStatusPaid, address, phone, orderID)
	if err != nil {
		return "", false, err
	}

	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return cur.Status, false, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// ListOrdersByCustomer retrieves a customer's orders, newest first
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}
