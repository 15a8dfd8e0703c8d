package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"commerce-backoffice/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func paidPayload(orderID, contact, address string) []byte {
	notes := fmt.Sprintf(`{"id":%q`, orderID)
	if orderID == "" {
		notes = `{`
	}
	if address != "" {
		notes += fmt.Sprintf(`,"address":%s`, address)
	}
	notes += `}`

	return []byte(fmt.Sprintf(
		`{"event":"order.paid","payload":{"payment":{"entity":{"contact":%q,"notes":%s}}}}`,
		contact, notes))
}

// newReconcileFixture creates a pending order for 2 of v1 (stock 10 -> 8 at
// intake) and returns the webhook service over the same fake store.
func newReconcileFixture(t *testing.T) (*WebhookService, *fakeStore, string) {
	t.Helper()

	fs := newFakeStore()
	fs.addStore("s1")
	fs.addVariant("v1", "s1", 10)

	intake := NewOrderService(fs, nil, nil, 3)
	resp, err := intake.CreateOrder(context.Background(), "s1", validRequest())
	require.NoError(t, err)
	require.Equal(t, 8, fs.stock("v1"))

	return NewWebhookService(fs, testSecret, nil), fs, resp.ID
}

func TestWebhookRejectsTamperedSignature(t *testing.T) {
	svc, fs, orderID := newReconcileFixture(t)

	body := paidPayload(orderID, "9876543210", "")
	err := svc.HandlePaymentNotification(context.Background(), body, "deadbeef")

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)

	// Zero mutations.
	assert.Zero(t, fs.markPaidCalls)
	assert.Zero(t, fs.fulfilledCalls)
	assert.Equal(t, 8, fs.stock("v1"))
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	svc, fs, _ := newReconcileFixture(t)

	body := []byte(`{"event": "order.paid", "payload": `)
	err := svc.HandlePaymentNotification(context.Background(), body, sign(body))

	var payloadErr *MalformedPayloadError
	require.ErrorAs(t, err, &payloadErr)
	assert.Zero(t, fs.markPaidCalls)
}

func TestWebhookIgnoresOtherEventKinds(t *testing.T) {
	svc, fs, _ := newReconcileFixture(t)

	body := []byte(`{"event":"payment.authorized","payload":{"payment":{"entity":{}}}}`)
	err := svc.HandlePaymentNotification(context.Background(), body, sign(body))

	assert.NoError(t, err)
	assert.Zero(t, fs.markPaidCalls)
}

func TestWebhookRequiresOrderID(t *testing.T) {
	svc, _, _ := newReconcileFixture(t)

	body := paidPayload("", "9876543210", "")
	err := svc.HandlePaymentNotification(context.Background(), body, sign(body))

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestWebhookOrderNotFound(t *testing.T) {
	svc, _, _ := newReconcileFixture(t)

	body := paidPayload("no-such-order", "9876543210", "")
	err := svc.HandlePaymentNotification(context.Background(), body, sign(body))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "order", nf.Resource)
}

func TestWebhookReconcilesAndIsIdempotent(t *testing.T) {
	svc, fs, orderID := newReconcileFixture(t)

	address := `"{\"address\":\"Flat 4\",\"town\":\"Indiranagar\",\"state\":\"Karnataka\",\"zipCode\":\"560038\"}"`
	body := paidPayload(orderID, "9876543210", address)

	require.NoError(t, svc.HandlePaymentNotification(context.Background(), body, sign(body)))

	order, err := fs.FindOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, order.IsPaid)
	assert.True(t, order.IsCompleted)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "Flat 4, Indiranagar, Karnataka, 560038", order.Address)
	assert.Equal(t, "9876543210", order.Phone)

	// Stock stays at the intake-reserved level; fulfillment matches the
	// reservation, so reconciliation only clamps.
	assert.Equal(t, 8, fs.stock("v1"))
	firstFulfilled := fs.fulfilledCalls
	assert.Equal(t, 1, firstFulfilled)

	// Redelivery of the identical notification is a no-op success.
	require.NoError(t, svc.HandlePaymentNotification(context.Background(), body, sign(body)))

	order, err = fs.FindOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, order.IsPaid)
	assert.Equal(t, 8, fs.stock("v1"))
	assert.Equal(t, firstFulfilled, fs.fulfilledCalls, "duplicate delivery must not adjust stock again")
}

func TestWebhookFallsBackToPlaceholders(t *testing.T) {
	svc, fs, orderID := newReconcileFixture(t)

	// notes.address is present but not valid JSON.
	body := paidPayload(orderID, "", `"not json at all"`)
	require.NoError(t, svc.HandlePaymentNotification(context.Background(), body, sign(body)))

	order, err := fs.FindOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, order.IsPaid)
	assert.Equal(t, "No address provided", order.Address)
	assert.Equal(t, "No phone provided", order.Phone)
}

func TestWebhookCancelledOrderReappliesDecrement(t *testing.T) {
	svc, fs, orderID := newReconcileFixture(t)

	// Cancellation released the reservation before the late notification.
	fs.mu.Lock()
	fs.orders[orderID].Status = models.OrderStatusCancelled
	fs.variants["v1"].Stock = 10
	fs.mu.Unlock()

	body := paidPayload(orderID, "9876543210", "")
	require.NoError(t, svc.HandlePaymentNotification(context.Background(), body, sign(body)))

	require.Len(t, fs.releasedHeldArg, 1)
	assert.False(t, fs.releasedHeldArg[0])
	assert.Equal(t, 8, fs.stock("v1"))
}

func TestWebhookItemFailureIsIsolated(t *testing.T) {
	fs := newFakeStore()
	fs.addStore("s1")
	fs.addVariant("v1", "s1", 10)
	fs.addVariant("v2", "s1", 10)

	intake := NewOrderService(fs, nil, nil, 3)
	req := validRequest()
	req.Items = append(req.Items, OrderItemRequest{VariantID: "v2", Quantity: 3, Price: 100, MRP: 120, Name: "Steel Tumbler"})
	resp, err := intake.CreateOrder(context.Background(), "s1", req)
	require.NoError(t, err)

	// First item's variant vanished; its adjustment fails and is skipped.
	fs.fulfillErrVariantID = "v1"

	svc := NewWebhookService(fs, testSecret, nil)
	body := paidPayload(resp.ID, "9876543210", "")
	require.NoError(t, svc.HandlePaymentNotification(context.Background(), body, sign(body)))

	order, err := fs.FindOrderByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.True(t, order.IsPaid)
	assert.Equal(t, 2, fs.fulfilledCalls, "both items attempted despite first failing")
}
