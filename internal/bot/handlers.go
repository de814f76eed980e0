package bot

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"fitness-bot/internal/payment"
	"fitness-bot/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// maxWebhookBody caps webhook request bodies.
const maxWebhookBody = 1 << 20

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.Event, error)
}

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, event *payment.Event) error
}

// StripeWebhookHandler applies verified payment outcomes to subscriptions.
type StripeWebhookHandler struct {
	parser    WebhookParser
	confirmer PaymentConfirmer
	logger    *logger.Logger
}

func NewStripeWebhookHandler(parser WebhookParser, confirmer PaymentConfirmer, log *logger.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{parser: parser, confirmer: confirmer, logger: log.Named("stripe_webhook")}
}

func (h *StripeWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Errorw("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Error("Missing Stripe signature header")
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := h.parser.ParseWebhook(body, signature)
	if err != nil {
		h.logger.Errorw("Failed to verify webhook", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	if event != nil {
		if err := h.confirmer.ConfirmPayment(r.Context(), event); err != nil {
			// Stripe redelivers on non-2xx
			h.logger.Errorw("Failed to apply payment", "payment_id", event.PaymentID, "error", err)
			http.Error(w, "Failed to process event", http.StatusInternalServerError)
			return
		}
		h.logger.Infow("Payment event processed", "payment_id", event.PaymentID, "succeeded", event.Succeeded)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

// WebhookHandler accepts Telegram pushes on a route carrying the shared {secret}.
func (t *TelegramBot) WebhookHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(chi.URLParam(r, "secret")), []byte(secret)) != 1 {
			http.NotFound(w, r)
			return
		}

		update, err := t.bot.HandleUpdate(r)
		if err != nil {
			t.logger.Errorw("Failed to decode Telegram update", "error", err)
			http.Error(w, "Bad update", http.StatusBadRequest)
			return
		}

		t.dispatch(*update)
		w.WriteHeader(http.StatusOK)
	}
}
