package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitness-bot/internal/metrics"
	"fitness-bot/internal/models"
	"fitness-bot/internal/payment"
	"fitness-bot/pkg/logger"
)

// ErrUnknownAccount is returned for operations on an account that does not exist.
var ErrUnknownAccount = errors.New("account not found")

type Status string

const (
	StatusTrial   Status = "trial"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// StatusOf derives the lifecycle state from the account's paid flag and paid_until.
func StatusOf(a *models.Account, now time.Time) Status {
	switch {
	case a == nil:
		return StatusTrial
	case a.IsPaid && a.PaidUntil != nil && a.PaidUntil.After(now):
		return StatusActive
	case !a.IsPaid && a.PaidUntil == nil:
		return StatusTrial
	default:
		return StatusExpired
	}
}

// IsActive is the call-time gate for paid features. It re-checks paid_until so a
// stale paid flag between deactivation runs grants nothing.
func IsActive(a *models.Account, now time.Time) bool {
	return StatusOf(a, now) == StatusActive
}

type Store interface {
	GetAccount(ctx context.Context, telegramID int64) (*models.Account, error)
	ListInactivePaid(ctx context.Context, before time.Time) ([]models.Account, error)
	ListExpiredPaid(ctx context.Context, now time.Time) ([]models.Account, error)
	SetPaid(ctx context.Context, telegramID int64, paid bool) error
	ListAccountsForRenewal(ctx context.Context, dueBefore, attemptedBefore time.Time) ([]models.Account, error)
	SetSubscriptionUntil(ctx context.Context, telegramID int64, until time.Time) error
	MarkChargeAttempt(ctx context.Context, telegramID int64, at time.Time) error
	SetPaymentMethod(ctx context.Context, telegramID int64, ref *string) error
	GetPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	SavePayment(ctx context.Context, p *models.Payment) error
}

type Charger interface {
	ChargeStoredInstrument(ctx context.Context, account *models.Account) (*payment.ChargeResult, error)
}

type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Options struct {
	RenewalPeriod       time.Duration
	RenewalDaysAhead    int
	ChargeRetryInterval time.Duration
	InactivityThreshold time.Duration
	Amount              int64
	Currency            string
}

type Manager struct {
	store    Store
	charger  Charger
	notifier Notifier
	metrics  metrics.Recorder
	log      *logger.Logger
	opts     Options
	now      func() time.Time
}

func NewManager(store Store, charger Charger, notifier Notifier, rec metrics.Recorder, log *logger.Logger, opts Options) *Manager {
	return &Manager{
		store:    store,
		charger:  charger,
		notifier: notifier,
		metrics:  rec,
		log:      log.Named("subscription"),
		opts:     opts,
		now:      time.Now,
	}
}

// SendReminders nudges paid accounts that have been silent longer than the inactivity threshold.
func (m *Manager) SendReminders(ctx context.Context) (int, error) {
	accounts, err := m.store.ListInactivePaid(ctx, m.now().Add(-m.opts.InactivityThreshold))
	if err != nil {
		return 0, fmt.Errorf("failed to list inactive accounts: %w", err)
	}

	sent := 0
	for _, a := range accounts {
		if err := m.notifier.SendText(ctx, a.TelegramID, msgInactivityReminder); err != nil {
			m.log.Warnw("Failed to send reminder", "telegram_id", a.TelegramID, "error", err)
			continue
		}
		sent++
	}

	m.log.Infow("Inactivity reminders sent", "candidates", len(accounts), "sent", sent)
	return sent, nil
}

// DeactivateExpired flips the paid flag off for accounts whose paid_until has passed.
func (m *Manager) DeactivateExpired(ctx context.Context) (int, error) {
	accounts, err := m.store.ListExpiredPaid(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired accounts: %w", err)
	}

	flipped := 0
	for _, a := range accounts {
		if err := m.store.SetPaid(ctx, a.TelegramID, false); err != nil {
			m.log.Errorw("Failed to deactivate subscription", "telegram_id", a.TelegramID, "error", err)
			continue
		}
		flipped++
	}

	if flipped > 0 {
		m.log.Infow("Expired subscriptions deactivated", "count", flipped)
	}
	return flipped, nil
}

// AutoCharge renews subscriptions ending within RenewalDaysAhead using the stored instrument.
// An account is attempted at most once per ChargeRetryInterval.
func (m *Manager) AutoCharge(ctx context.Context) (int, error) {
	now := m.now()
	dueBefore := now.AddDate(0, 0, m.opts.RenewalDaysAhead)

	accounts, err := m.store.ListAccountsForRenewal(ctx, dueBefore, now.Add(-m.opts.ChargeRetryInterval))
	if err != nil {
		return 0, fmt.Errorf("failed to list renewal candidates: %w", err)
	}

	renewed := 0
	for i := range accounts {
		if ctx.Err() != nil {
			return renewed, ctx.Err()
		}
		if m.renew(ctx, &accounts[i], now) {
			renewed++
		}
	}
	return renewed, nil
}

func (m *Manager) renew(ctx context.Context, a *models.Account, now time.Time) bool {
	log := m.log.With("telegram_id", a.TelegramID)

	if err := m.store.MarkChargeAttempt(ctx, a.TelegramID, now); err != nil {
		log.Errorw("Failed to record charge attempt, skipping", "error", err)
		return false
	}

	result, err := m.charger.ChargeStoredInstrument(ctx, a)
	if err != nil {
		m.metrics.RecordCharge(metrics.ResultError)
		log.Warnw("Auto-charge failed", "error", err)
		m.notify(ctx, a.TelegramID, msgChargeFailed)
		return false
	}
	m.metrics.RecordCharge(metrics.ResultOK)

	until := m.now().Add(m.opts.RenewalPeriod)
	if err := m.store.SetSubscriptionUntil(ctx, a.TelegramID, until); err != nil {
		log.Errorw("Charged but failed to extend subscription", "payment_id", result.PaymentID, "error", err)
		return false
	}

	m.record(ctx, &models.Payment{
		AccountID:         a.ID,
		Amount:            result.Amount,
		Currency:          result.Currency,
		ProviderPaymentID: result.PaymentID,
		Kind:              models.PaymentRenewal,
		Status:            models.PaymentStatusSucceeded,
	})

	log.Infow("Subscription renewed", "payment_id", result.PaymentID, "paid_until", until)
	m.notify(ctx, a.TelegramID, fmt.Sprintf(msgChargeSucceeded, until.Format(dateLayout)))
	return true
}

// ConfirmPayment applies a payment webhook. Replays of an already succeeded payment are no-ops.
// Renewal events are skipped: AutoCharge extends, records and notifies those itself.
func (m *Manager) ConfirmPayment(ctx context.Context, event *payment.Event) error {
	if event == nil || event.PaymentID == "" {
		return errors.New("empty payment event")
	}
	if event.Kind == models.PaymentRenewal {
		m.log.Infow("Renewal webhook skipped", "payment_id", event.PaymentID, "telegram_id", event.TelegramID)
		return nil
	}

	existing, err := m.store.GetPaymentByProviderID(ctx, event.PaymentID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == models.PaymentStatusSucceeded {
		m.log.Infow("Payment already applied", "payment_id", event.PaymentID)
		return nil
	}

	if event.TelegramID == 0 {
		return fmt.Errorf("payment %s has no telegram_id metadata", event.PaymentID)
	}
	account, err := m.store.GetAccount(ctx, event.TelegramID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("payment %s: account %d not found", event.PaymentID, event.TelegramID)
	}

	status := models.PaymentStatusFailed
	if event.Succeeded {
		status = models.PaymentStatusSucceeded
	}
	ledger := &models.Payment{
		AccountID:         account.ID,
		Amount:            event.Amount,
		Currency:          event.Currency,
		ProviderPaymentID: event.PaymentID,
		Kind:              event.Kind,
		Status:            status,
	}

	if !event.Succeeded {
		m.record(ctx, ledger)
		m.log.Warnw("Payment failed", "payment_id", event.PaymentID, "telegram_id", event.TelegramID)
		return nil
	}

	until := m.now().Add(m.opts.RenewalPeriod)
	if err := m.store.SetSubscriptionUntil(ctx, account.TelegramID, until); err != nil {
		return fmt.Errorf("failed to extend subscription: %w", err)
	}
	if event.InstrumentRef != "" {
		ref := event.InstrumentRef
		if err := m.store.SetPaymentMethod(ctx, account.TelegramID, &ref); err != nil {
			m.log.Errorw("Failed to store payment instrument", "telegram_id", account.TelegramID, "error", err)
		}
	}
	m.record(ctx, ledger)

	m.log.Infow("Payment confirmed", "payment_id", event.PaymentID, "telegram_id", account.TelegramID, "paid_until", until)
	m.notify(ctx, account.TelegramID, fmt.Sprintf(msgPaymentConfirmed, until.Format(dateLayout)))
	return nil
}

// ConfirmManual grants one renewal period without a provider payment.
func (m *Manager) ConfirmManual(ctx context.Context, telegramID int64) (time.Time, error) {
	account, err := m.store.GetAccount(ctx, telegramID)
	if err != nil {
		return time.Time{}, err
	}
	if account == nil {
		return time.Time{}, fmt.Errorf("confirm %d: %w", telegramID, ErrUnknownAccount)
	}

	until := m.now().Add(m.opts.RenewalPeriod)
	if err := m.store.SetSubscriptionUntil(ctx, telegramID, until); err != nil {
		return time.Time{}, err
	}

	m.log.Infow("Payment confirmed manually", "telegram_id", telegramID, "paid_until", until)
	m.notify(ctx, telegramID, fmt.Sprintf(msgPaymentConfirmed, until.Format(dateLayout)))
	return until, nil
}

// RemoveInstrument disables auto-charge for the account.
func (m *Manager) RemoveInstrument(ctx context.Context, telegramID int64) error {
	return m.store.SetPaymentMethod(ctx, telegramID, nil)
}

func (m *Manager) record(ctx context.Context, p *models.Payment) {
	if p.Currency == "" {
		p.Currency = m.opts.Currency
	}
	if p.Amount == 0 {
		p.Amount = m.opts.Amount
	}
	if err := m.store.SavePayment(ctx, p); err != nil {
		m.log.Errorw("Failed to save payment", "payment_id", p.ProviderPaymentID, "error", err)
	}
}

func (m *Manager) notify(ctx context.Context, telegramID int64, text string) {
	if err := m.notifier.SendText(ctx, telegramID, text); err != nil {
		m.log.Warnw("Failed to notify user", "telegram_id", telegramID, "error", err)
	}
}
