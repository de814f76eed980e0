package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fitness-bot/internal/models"
	"fitness-bot/internal/session"
)

// startOnboarding resets the session to the first questionnaire step.
func (d *Dialog) startOnboarding(ctx context.Context, u Update, intro string) {
	sess := &session.Session{State: session.StateOnboarding, Step: session.StepGoal}
	if !d.saveSession(ctx, u, sess) {
		return
	}

	if intro != "" {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: intro, RemoveKeyboard: true})
	}
	d.send(ctx, Reply{ChatID: u.ChatID, Text: onboardingQuestions[session.StepGoal]})
}

func (d *Dialog) onboardingAnswer(ctx context.Context, u Update, sess *session.Session) {
	if sess.Step == session.StepConfirm {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: profileSummary(sess.Answers), Inline: confirmProfileKeyboard()})
		return
	}

	answer := strings.TrimSpace(u.Text)
	if answer == "" {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgEmptyAnswer + "\n\n" + onboardingQuestions[sess.Step]})
		return
	}

	if hint, numeric := numericHints[sess.Step]; numeric {
		// Re-ask the same step on bad input
		n, ok := parsePositiveInt(answer)
		if !ok {
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgEnterPositiveInt + hint})
			return
		}
		if bounds := numericRanges[sess.Step]; n < bounds[0] || n > bounds[1] {
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgEnterPositiveInt + hint + "\n" + fmt.Sprintf(msgNumberRange, bounds[0], bounds[1])})
			return
		}
		setNumericAnswer(&sess.Answers, sess.Step, n)
	} else {
		setTextAnswer(&sess.Answers, sess.Step, answer)
	}

	sess.Step = session.NextOnboardingStep(sess.Step)
	if !d.saveSession(ctx, u, sess) {
		return
	}

	if sess.Step == session.StepConfirm {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: profileSummary(sess.Answers), Inline: confirmProfileKeyboard()})
		return
	}
	d.send(ctx, Reply{ChatID: u.ChatID, Text: onboardingQuestions[sess.Step]})
}

// confirmOnboarding persists the profile and delivers exactly one plan: personal when the
// subscription is active, the free trial otherwise. Runs under the busy flag.
func (d *Dialog) confirmOnboarding(ctx context.Context, u Update, account *models.Account) {
	sess, ok := d.reload(ctx, u, session.StateOnboarding)
	if !ok {
		return
	}
	if sess.Step != session.StepConfirm || !sess.Answers.Complete() {
		d.stale(ctx, u)
		return
	}

	updated, err := d.store.UpdateProfile(ctx, u.TelegramID, sess.Answers)
	if err != nil || updated == nil {
		d.log.Errorw("Failed to save profile", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return
	}
	account = updated

	kind := models.WorkoutPersonal
	if !d.active(account) {
		used, err := d.store.HasTrialWorkout(ctx, account.ID)
		if err != nil {
			d.log.Errorw("Failed to check trial workout", "telegram_id", u.TelegramID, "error", err)
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
			return
		}
		if used {
			d.clearSession(ctx, u.TelegramID)
			d.send(ctx, Reply{
				ChatID: u.ChatID,
				Text:   msgProfileSaved + " " + msgTrialUsed + "\n\n" + fmt.Sprintf(msgPayRequired, d.price()),
				Inline: [][]Button{{{Text: msgPayButton, Data: cbPay}}},
			})
			return
		}
		kind = models.WorkoutFreeTrial
	}

	d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenerating})
	plan, err := d.generatePlan(ctx, account, &session.Session{PlanKind: kind})
	if err != nil {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenerationFailed, Inline: confirmProfileKeyboard()})
		return
	}

	if _, err := d.store.AppendWorkout(ctx, models.WorkoutRecord{
		AccountID: account.ID,
		Type:      kind,
		Details:   plan,
		Date:      d.now(),
	}); err != nil {
		d.log.Errorw("Failed to save workout", "telegram_id", u.TelegramID, "kind", kind, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return
	}
	d.clearSession(ctx, u.TelegramID)

	if kind == models.WorkoutFreeTrial {
		d.send(ctx, Reply{
			ChatID: u.ChatID,
			Text:   fmt.Sprintf(msgTrialWorkout, plan, d.price()),
			Inline: [][]Button{{{Text: msgPayButton, Data: cbPay}}},
		})
		return
	}
	d.send(ctx, d.menuReply(u.ChatID, account, fmt.Sprintf(msgPersonalWorkout, plan)))
}

func setTextAnswer(p *models.Profile, step, answer string) {
	switch step {
	case session.StepGoal:
		p.Goal = answer
	case session.StepLevel:
		p.Level = answer
	case session.StepHealth:
		p.HealthIssues = answer
	case session.StepLocation:
		p.Location = answer
	case session.StepGender:
		p.Gender = answer
	}
}

func setNumericAnswer(p *models.Profile, step string, n int) {
	switch step {
	case session.StepWeeklyFrequency:
		p.WorkoutsPerWeek = n
	case session.StepHeight:
		p.Height = n
	case session.StepWeight:
		p.Weight = n
	case session.StepAge:
		p.Age = n
	}
}

// numericRanges holds the accepted closed range per numeric step. Every bound fits
// the INTEGER profile columns.
var numericRanges = map[string][2]int{
	session.StepWeeklyFrequency: {1, 14},
	session.StepHeight:          {50, 260},
	session.StepWeight:          {20, 400},
	session.StepAge:             {10, 100},
}

func parsePositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func profileSummary(p models.Profile) string {
	return fmt.Sprintf(msgConfirmProfile,
		p.Goal, p.Level, p.HealthIssues, p.Location, p.WorkoutsPerWeek,
		p.Height, p.Weight, p.Age, p.Gender,
	)
}

func confirmProfileKeyboard() [][]Button {
	return [][]Button{{
		{Text: btnAccept, Data: cbOnboardingConfirm},
		{Text: btnRedo, Data: cbOnboardingRedo},
	}}
}
