package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fitness-bot/internal/models"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/customer"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/webhook"
)

var (
	ErrNoInstrument   = errors.New("no stored payment instrument")
	ErrChargeDeclined = errors.New("charge declined")
)

const (
	metaTelegramID = "telegram_id"
	metaKind       = "kind"
)

type Options struct {
	SecretKey   string
	WebhookKey  string
	ProductID   string
	PriceID     string
	Amount      int64
	Currency    string
	Description string
}

type StripeClient struct {
	secretKey     string
	webhookSecret string
	priceID       string
	productID     string
	amount        int64
	currency      string
	description   string
}

func NewStripeClient(opts Options) *StripeClient {
	// Set the secret key for backend operations
	stripe.Key = opts.SecretKey

	return &StripeClient{
		secretKey:     opts.SecretKey,
		webhookSecret: opts.WebhookKey,
		priceID:       opts.PriceID,
		productID:     opts.ProductID,
		amount:        opts.Amount,
		currency:      opts.Currency,
		description:   opts.Description,
	}
}

// Link is a hosted payment page for one subscription period.
type Link struct {
	URL       string
	PaymentID string
}

// ChargeResult describes a successful off-session charge.
type ChargeResult struct {
	PaymentID string
	Amount    int64
	Currency  string
}

// Event is a payment webhook reduced to what the subscription lifecycle needs.
type Event struct {
	PaymentID     string
	Succeeded     bool
	InstrumentRef string
	TelegramID    int64
	Kind          models.PaymentKind
	Amount        int64
	Currency      string
}

// CreatePaymentLink opens a Checkout Session that saves the card for off-session renewals.
// An account with a stored instrument reuses its Stripe customer.
func (s *StripeClient) CreatePaymentLink(ctx context.Context, account *models.Account, returnURL string) (*Link, error) {
	telegramID := strconv.FormatInt(account.TelegramID, 10)

	customerID := ""
	if account.HasInstrument() {
		customerID, _, _ = DecodeInstrument(*account.PaymentMethodID)
	}
	if customerID == "" {
		params := &stripe.CustomerParams{
			Name: stripe.String(strings.TrimSpace(account.FirstName + " " + account.LastName)),
		}
		params.Context = ctx
		params.AddMetadata(metaTelegramID, telegramID)

		c, err := customer.New(params)
		if err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		customerID = c.ID
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{s.lineItem()},
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(returnURL + "?start=payment_success"),
		CancelURL:          stripe.String(returnURL + "?start=payment_cancel"),
		ClientReferenceID:  stripe.String(telegramID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			SetupFutureUsage: stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession)),
			Description:      stripe.String(s.description),
			Metadata: map[string]string{
				metaTelegramID: telegramID,
				metaKind:       string(models.PaymentCheckout),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metaTelegramID, telegramID)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &Link{URL: sess.URL, PaymentID: sess.ID}, nil
}

func (s *StripeClient) lineItem() *stripe.CheckoutSessionLineItemParams {
	if s.priceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(s.priceID),
			Quantity: stripe.Int64(1),
		}
	}

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(s.currency),
		UnitAmount: stripe.Int64(s.amount),
	}
	if s.productID != "" {
		priceData.Product = stripe.String(s.productID)
	} else {
		priceData.ProductData = &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(s.description),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: priceData,
		Quantity:  stripe.Int64(1),
	}
}

// ChargeStoredInstrument confirms an off-session PaymentIntent on the account's saved card.
func (s *StripeClient) ChargeStoredInstrument(ctx context.Context, account *models.Account) (*ChargeResult, error) {
	if !account.HasInstrument() {
		return nil, ErrNoInstrument
	}
	customerID, paymentMethodID, err := DecodeInstrument(*account.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(s.amount),
		Currency:      stripe.String(s.currency),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(paymentMethodID),
		Description:   stripe.String(s.description),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	params.AddMetadata(metaTelegramID, strconv.FormatInt(account.TelegramID, 10))
	params.AddMetadata(metaKind, string(models.PaymentRenewal))

	pi, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return nil, fmt.Errorf("%w: %s", ErrChargeDeclined, stripeErr.Msg)
		}
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: payment intent %s is %s", ErrChargeDeclined, pi.ID, pi.Status)
	}

	return &ChargeResult{PaymentID: pi.ID, Amount: pi.Amount, Currency: string(pi.Currency)}, nil
}

// ParseWebhook verifies the signature and maps payment intent events.
// It returns nil, nil for event types that carry no payment outcome.
func (s *StripeClient) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("webhook secret is not configured")
	}

	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}
	return mapEvent(event)
}

func mapEvent(event stripe.Event) (*Event, error) {
	var succeeded bool
	switch event.Type {
	case "payment_intent.succeeded":
		succeeded = true
	case "payment_intent.payment_failed":
		succeeded = false
	default:
		return nil, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse payment intent: %w", err)
	}

	out := &Event{
		PaymentID: intent.ID,
		Succeeded: succeeded,
		Kind:      models.PaymentKind(intent.Metadata[metaKind]),
		Amount:    intent.Amount,
		Currency:  string(intent.Currency),
	}
	if out.Kind == "" {
		out.Kind = models.PaymentCheckout
	}

	if raw := intent.Metadata[metaTelegramID]; raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram_id metadata %q: %w", raw, err)
		}
		out.TelegramID = id
	}

	if succeeded && intent.Customer != nil && intent.PaymentMethod != nil {
		out.InstrumentRef = EncodeInstrument(intent.Customer.ID, intent.PaymentMethod.ID)
	}

	return out, nil
}

// EncodeInstrument packs a customer and payment method into one stored reference.
func EncodeInstrument(customerID, paymentMethodID string) string {
	if customerID == "" || paymentMethodID == "" {
		return ""
	}
	return customerID + ":" + paymentMethodID
}

func DecodeInstrument(ref string) (customerID, paymentMethodID string, err error) {
	customerID, paymentMethodID, ok := strings.Cut(ref, ":")
	if !ok || customerID == "" || paymentMethodID == "" {
		return "", "", fmt.Errorf("malformed instrument reference %q", ref)
	}
	return customerID, paymentMethodID, nil
}
