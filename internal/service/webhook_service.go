package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"commerce-backoffice/internal/broker"
	"commerce-backoffice/internal/models"
	"commerce-backoffice/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	eventOrderPaid = "order.paid"

	placeholderAddress = "No address provided"
	placeholderPhone   = "No phone provided"
)

// paymentNotification is the provider's webhook envelope, modeled with
// explicit presence checks instead of the provider's free-form JSON.
type paymentNotification struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	Contact string       `json:"contact"`
	Notes   paymentNotes `json:"notes"`
}

// paymentNotes carries the order identity and an optional JSON-encoded
// shipping address, both planted by checkout.
type paymentNotes struct {
	OrderID string `json:"id"`
	Address string `json:"address"`
}

type shippingAddress struct {
	Address  string `json:"address"`
	Landmark string `json:"landmark"`
	Town     string `json:"town"`
	District string `json:"district"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
}

// WebhookService reconciles asynchronous payment notifications with orders
type WebhookService struct {
	store     Store
	secret    string
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewWebhookService creates the payment reconciliation service. secret is
// the shared HMAC key for notification signatures.
func NewWebhookService(st Store, secret string, publisher *broker.EventPublisher) *WebhookService {
	return &WebhookService{
		store:     st,
		secret:    secret,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// HandlePaymentNotification processes one delivery of a payment webhook.
// Deliveries are at-least-once; the paid flip is idempotent, and a duplicate
// or unhandled event kind returns nil so the provider stops retrying.
func (s *WebhookService) HandlePaymentNotification(ctx context.Context, body []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandlePaymentNotification")
	defer span.End()

	if !s.verifySignature(body, signature) {
		util.WebhooksRejectedTotal.WithLabelValues("invalid_signature").Inc()
		s.logger.Error("Webhook signature verification failed")
		return &AuthenticationError{Reason: "invalid webhook signature"}
	}

	var event paymentNotification
	if err := json.Unmarshal(body, &event); err != nil {
		util.WebhooksRejectedTotal.WithLabelValues("malformed_payload").Inc()
		return &MalformedPayloadError{Err: err}
	}

	if event.Event != eventOrderPaid {
		util.WebhooksIgnoredTotal.Inc()
		s.logger.Info("Ignoring unhandled webhook event kind",
			zap.String("event", event.Event))
		return nil
	}

	payment := event.Payload.Payment.Entity
	orderID := payment.Notes.OrderID
	if orderID == "" {
		util.WebhooksRejectedTotal.WithLabelValues("missing_order_id").Inc()
		return &ValidationError{Reason: "order id not found in webhook payload"}
	}

	order, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to look up order: %w", err)
	}
	if order == nil {
		util.WebhooksRejectedTotal.WithLabelValues("order_not_found").Inc()
		return &NotFoundError{Resource: "order", ID: orderID}
	}

	if order.IsPaid {
		util.WebhooksDuplicateTotal.Inc()
		s.logger.Info("Order already paid, acknowledging duplicate delivery",
			zap.String("order_id", orderID))
		return nil
	}

	address := parseShippingAddress(payment.Notes.Address)
	if address == "" {
		address = placeholderAddress
	}
	phone := payment.Contact
	if phone == "" {
		phone = placeholderPhone
	}

	prevStatus, alreadyPaid, err := s.store.MarkOrderPaid(ctx, orderID, address, phone)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if alreadyPaid {
		// A concurrent delivery won the gate inside the transaction.
		util.WebhooksDuplicateTotal.Inc()
		s.logger.Info("Order already paid, concurrent delivery lost the gate",
			zap.String("order_id", orderID))
		return nil
	}

	items := s.adjustFulfilledStock(ctx, order, prevStatus)
	s.publishOrderPaid(ctx, order, items)

	util.WebhooksProcessedTotal.Inc()
	s.logger.Info("Payment reconciled",
		zap.String("order_id", orderID),
		zap.String("prev_status", prevStatus))
	return nil
}

// adjustFulfilledStock reconciles each item's variant stock against the
// now-final sale. The payment is already captured upstream, so every failure
// here is logged and skipped, never surfaced.
func (s *WebhookService) adjustFulfilledStock(ctx context.Context, order *models.Order, prevStatus string) []models.OrderItem {
	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		util.StockAdjustmentsFailedTotal.Inc()
		s.logger.Error("Failed to load order items for stock adjustment",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil
	}

	// A cancelled order already had its reservation released; the units
	// still shipped, so the decrement is re-applied there.
	reservationHeld := prevStatus != models.OrderStatusCancelled

	for _, item := range items {
		if err := s.store.SetFulfilled(ctx, item.VariantID, item.Quantity, reservationHeld); err != nil {
			util.StockAdjustmentsFailedTotal.Inc()
			s.logger.Error("Failed to adjust variant stock, skipping item",
				zap.String("order_id", order.ID),
				zap.String("variant_id", item.VariantID),
				zap.Error(err))
			continue
		}
	}
	return items
}

func (s *WebhookService) publishOrderPaid(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.publisher == nil {
		return
	}

	itemData := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		itemData = append(itemData, models.OrderItemData{
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		StoreID: order.StoreID,
		Items:   itemData,
	}

	if err := s.publisher.PublishOrderPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaid event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

// verifySignature recomputes the HMAC-SHA256 hex digest over the raw body
// and compares in constant time.
func (s *WebhookService) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// parseShippingAddress joins the non-empty address components with ", ".
// Any parse failure yields "" so cosmetic address data never blocks
// reconciliation.
func parseShippingAddress(raw string) string {
	if raw == "" {
		return ""
	}

	var addr shippingAddress
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return ""
	}

	parts := make([]string, 0, 6)
	for _, p := range []string{addr.Address, addr.Landmark, addr.Town, addr.District, addr.State, addr.ZipCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
