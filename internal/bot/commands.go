package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fitness-bot/internal/models"
	"fitness-bot/internal/subscription"
)

const dateLayout = "02.01.2006"

func (d *Dialog) handleCommand(ctx context.Context, u Update, account *models.Account) {
	switch u.Command {
	case "start":
		d.start(ctx, u, account)
	case "profile":
		if d.refuseBusy(ctx, u) {
			return
		}
		d.startOnboarding(ctx, u, msgProfileRestart)
	case "cancel":
		if d.refuseBusy(ctx, u) {
			return
		}
		d.clearSession(ctx, u.TelegramID)
		d.send(ctx, d.menuReply(u.ChatID, account, msgCancelled))
	case "help":
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgHelp})
	case "pay":
		d.pay(ctx, u, account)
	case "status":
		d.status(ctx, u, account)
	case "autopay_off":
		d.autopayOff(ctx, u, account)
	case "confirm_payment":
		d.confirmPayment(ctx, u, account)
	default:
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgUnknownCommand})
	}
}

func (d *Dialog) start(ctx context.Context, u Update, account *models.Account) {
	// Return from the checkout page
	switch strings.TrimSpace(u.Args) {
	case "payment_success":
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgPaymentPending})
		return
	case "payment_cancel":
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgPaymentCanceled})
		return
	}

	// Both branches below reset the session
	if d.refuseBusy(ctx, u) {
		return
	}
	if !account.Profile.Complete() || !d.active(account) {
		d.startOnboarding(ctx, u, msgWelcomeNew)
		return
	}
	d.clearSession(ctx, u.TelegramID)
	d.send(ctx, d.menuReply(u.ChatID, account, msgWelcomeBack))
}

func (d *Dialog) pay(ctx context.Context, u Update, account *models.Account) {
	link, err := d.biller.CreatePaymentLink(ctx, account, d.opts.ReturnURL)
	if err != nil {
		d.log.Errorw("Failed to create payment link", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgPayFailed})
		return
	}

	d.log.Infow("Payment link created", "telegram_id", u.TelegramID, "payment_id", link.PaymentID)
	d.send(ctx, Reply{
		ChatID: u.ChatID,
		Text:   fmt.Sprintf(msgPayLink, d.price()),
		Inline: [][]Button{{{Text: msgPayButton, URL: link.URL}}},
	})
}

func (d *Dialog) status(ctx context.Context, u Update, account *models.Account) {
	var text string
	switch subscription.StatusOf(account, d.now()) {
	case subscription.StatusActive:
		text = fmt.Sprintf(msgStatusActive, account.PaidUntil.Format(dateLayout))
	case subscription.StatusExpired:
		text = msgStatusExpired
	default:
		text = msgStatusTrial
	}
	if account.HasInstrument() {
		text += msgStatusAutopay
	}
	d.send(ctx, Reply{ChatID: u.ChatID, Text: text})
}

func (d *Dialog) autopayOff(ctx context.Context, u Update, account *models.Account) {
	if !account.HasInstrument() {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgAutopayNone})
		return
	}
	if err := d.subs.RemoveInstrument(ctx, u.TelegramID); err != nil {
		d.log.Errorw("Failed to remove payment instrument", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return
	}
	d.send(ctx, Reply{ChatID: u.ChatID, Text: msgAutopayOff})
}

func (d *Dialog) confirmPayment(ctx context.Context, u Update, account *models.Account) {
	if !d.isAdmin(account) {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgNoAccess})
		return
	}

	target, err := strconv.ParseInt(strings.TrimSpace(u.Args), 10, 64)
	if err != nil || target <= 0 {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgConfirmUsage})
		return
	}

	until, err := d.subs.ConfirmManual(ctx, target)
	if errors.Is(err, subscription.ErrUnknownAccount) {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgConfirmFailed})
		return
	}
	if err != nil {
		d.log.Errorw("Failed to confirm payment manually", "admin_id", u.TelegramID, "telegram_id", target, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return
	}

	d.log.Infow("Payment confirmed manually", "admin_id", u.TelegramID, "telegram_id", target)
	d.send(ctx, Reply{ChatID: u.ChatID, Text: fmt.Sprintf(msgConfirmDone, target, until.Format(dateLayout))})
}
