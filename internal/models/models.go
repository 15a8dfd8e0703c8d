package models

import "time"

// Store represents a storefront whose catalog orders are placed against
type Store struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Variant represents a purchasable SKU carrying its own stock count
type Variant struct {
	ID        string    `db:"id" json:"id"`
	ProductID string    `db:"product_id" json:"product_id"`
	StoreID   string    `db:"store_id" json:"store_id"`
	Name      string    `db:"name" json:"name"`
	Stock     int       `db:"stock" json:"stock"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order
type Order struct {
	ID                    string      `db:"id" json:"id"`
	StoreID               string      `db:"store_id" json:"store_id"`
	OrderNumber           string      `db:"order_number" json:"order_number"`
	InvoiceNumber         string      `db:"invoice_number" json:"invoice_number"`
	Status                string      `db:"status" json:"status"`
	IsPaid                bool        `db:"is_paid" json:"is_paid"`
	IsCompleted           bool        `db:"is_completed" json:"is_completed"`
	Phone                 string      `db:"phone" json:"phone"`
	Address               string      `db:"address" json:"address"`
	ZipCode               string      `db:"zip_code" json:"zip_code,omitempty"`
	GSTNumber             string      `db:"gst_number" json:"gst_number,omitempty"`
	Discount              float64     `db:"discount" json:"discount,omitempty"`
	EstimatedDeliveryDays int         `db:"estimated_delivery_days" json:"estimated_delivery_days"`
	CustomerID            string      `db:"customer_id" json:"customer_id,omitempty"`
	CustomerName          string      `db:"customer_name" json:"customer_name,omitempty"`
	CustomerEmail         string      `db:"customer_email" json:"customer_email,omitempty"`
	CreatedAt             time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time   `db:"updated_at" json:"updated_at"`
	Items                 []OrderItem `db:"-" json:"order_items,omitempty"`
}

// OrderItem represents one line of an order. Name is snapshotted at order
// time so later catalog edits do not rewrite order history.
type OrderItem struct {
	ID        string `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	VariantID string `db:"variant_id" json:"variant_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
	Price     int64  `db:"price" json:"price"`
	MRP       int64  `db:"mrp" json:"mrp"`
	Name      string `db:"name" json:"name"`
}

// Location maps a pincode to a delivery estimate via its location group.
// DeliveryDays is 0 when the group carries no estimate.
type Location struct {
	ID           string `db:"id" json:"id"`
	StoreID      string `db:"store_id" json:"store_id"`
	Pincode      string `db:"pincode" json:"pincode"`
	GroupID      string `db:"location_group_id" json:"location_group_id"`
	DeliveryDays int    `db:"delivery_days" json:"delivery_days"`
}

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)
