package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fitness-bot/internal/broadcast"
	"fitness-bot/internal/models"
	"fitness-bot/internal/session"
)

func (d *Dialog) startBroadcast(ctx context.Context, u Update, account *models.Account) {
	if !d.isAdmin(account) {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgNoAccess})
		return
	}
	if d.broadcaster.Running(u.TelegramID) {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgBroadcastRunning})
		return
	}

	sess := &session.Session{State: session.StateBroadcastCompose, Step: session.StepBroadcastText}
	if !d.saveSession(ctx, u, sess) {
		return
	}
	d.send(ctx, Reply{ChatID: u.ChatID, Text: msgBroadcastAskText, RemoveKeyboard: true})
}

func (d *Dialog) broadcastInput(ctx context.Context, u Update, account *models.Account, sess *session.Session) {
	if !d.isAdmin(account) {
		d.clearSession(ctx, u.TelegramID)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgNoAccess})
		return
	}
	if sess.Step != session.StepBroadcastText {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgUseButtons})
		return
	}

	text := strings.TrimSpace(u.Text)
	if text == "" {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgBroadcastAskText})
		return
	}

	sess.Broadcast.Text = text
	sess.Step = session.StepBroadcastAudience
	if !d.saveSession(ctx, u, sess) {
		return
	}
	d.send(ctx, Reply{ChatID: u.ChatID, Text: msgBroadcastAudience, Inline: audienceKeyboard()})
}

func (d *Dialog) chooseAudience(ctx context.Context, u Update, account *models.Account, sess *session.Session, value string) {
	if !sess.In(session.StateBroadcastCompose, session.StepBroadcastAudience) {
		d.stale(ctx, u)
		return
	}
	if !d.isAdmin(account) {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgNoAccess})
		return
	}
	audience, ok := models.ParseAudience(value)
	if !ok {
		d.stale(ctx, u)
		return
	}

	sess.Broadcast.Audience = audience
	sess.Step = session.StepBroadcastConfirm
	if !d.saveSession(ctx, u, sess) {
		return
	}

	// Show the draft for confirmation
	note := ""
	if audience == models.AudienceTestAdmins {
		note = msgBroadcastTestNote
	}
	d.send(ctx, Reply{
		ChatID: u.ChatID,
		Text:   fmt.Sprintf(msgBroadcastConfirm, escapeHTML(sess.Broadcast.Text), audienceTitles[string(audience)], note),
		HTML:   true,
		Inline: [][]Button{{
			{Text: btnConfirm, Data: cbBroadcastConfirm},
			{Text: btnCancel, Data: cbBroadcastCancel},
		}},
	})
}

// confirmBroadcast hands the draft to the orchestrator; progress and the final
// report reach the admin from the job itself.
func (d *Dialog) confirmBroadcast(ctx context.Context, u Update, account *models.Account, sess *session.Session) {
	if !sess.In(session.StateBroadcastCompose, session.StepBroadcastConfirm) {
		d.stale(ctx, u)
		return
	}
	if !d.isAdmin(account) {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgNoAccess})
		return
	}

	draft := sess.Broadcast
	d.clearSession(ctx, u.TelegramID)

	// Hand off to the orchestrator, it runs detached from this update
	job, err := d.broadcaster.Start(u.TelegramID, draft.Text, draft.Audience)
	if errors.Is(err, broadcast.ErrAlreadyRunning) {
		d.send(ctx, d.menuReply(u.ChatID, account, msgBroadcastRunning))
		return
	}
	if err != nil {
		d.log.Errorw("Failed to start broadcast", "admin_id", u.TelegramID, "error", err)
		d.send(ctx, d.menuReply(u.ChatID, account, msgGenericError))
		return
	}

	d.log.Infow("Broadcast started", "admin_id", u.TelegramID, "job_id", job.ID, "audience", draft.Audience)
	d.send(ctx, d.menuReply(u.ChatID, account, msgBroadcastStarted))
}

func (d *Dialog) cancelBroadcast(ctx context.Context, u Update, account *models.Account, sess *session.Session) {
	if sess.State != session.StateBroadcastCompose {
		d.stale(ctx, u)
		return
	}
	d.clearSession(ctx, u.TelegramID)
	d.send(ctx, d.menuReply(u.ChatID, account, msgBroadcastCancelled))
}

func audienceKeyboard() [][]Button {
	rows := make([][]Button, 0, len(models.Audiences))
	for _, a := range models.Audiences {
		rows = append(rows, []Button{{Text: audienceTitles[string(a)], Data: cbBroadcastAudience + string(a)}})
	}
	return rows
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
