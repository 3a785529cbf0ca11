package handler

import (
	"io"
	"log"
	"net/http"

	"github.com/orgadmin/backend/internal/events"
	"github.com/orgadmin/backend/pkg/payment"
	"github.com/stripe/stripe-go/v79/webhook"
)

const maxWebhookBody = 64 << 10

// WebhookHandler receives payment provider webhooks. Events are verified and
// published for audit; they never change a checkout session, which is
// settled by the buyer's own confirmation.
type WebhookHandler struct {
	secret string
	events events.Publisher
}

// NewWebhookHandler creates a new WebhookHandler. An empty secret disables the endpoint.
func NewWebhookHandler(secret string, pub events.Publisher) *WebhookHandler {
	return &WebhookHandler{secret: secret, events: pub}
}

// Stripe handles POST /api/payment/webhook.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		JSON(w, http.StatusNotFound, map[string]string{"error": "webhooks are not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		JSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Printf("[Webhook] rejected stripe event: %v", err)
		JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}

	var objectID string
	if event.Data != nil {
		objectID, _ = event.Data.Object["id"].(string)
	}
	log.Printf("[Webhook] stripe %s %s (%s)", event.Type, objectID, event.ID)

	if err := h.events.Publish(r.Context(), events.Event{
		Type:          events.TypeProviderWebhook,
		TransactionID: objectID,
		Gateway:       payment.GatewayStripe,
		Message:       string(event.Type),
	}); err != nil {
		log.Printf("[Webhook] event publish failed: %v", err)
	}
	JSON(w, http.StatusOK, map[string]bool{"received": true})
}
