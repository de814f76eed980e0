package bot

import (
	"context"
	"fmt"

	"fitness-bot/internal/gpt"
	"fitness-bot/internal/models"
	"fitness-bot/internal/session"
)

func (d *Dialog) newWorkout(ctx context.Context, u Update, account *models.Account) {
	if !d.requireActive(ctx, u, account) {
		return
	}
	if !account.Profile.Complete() {
		d.startOnboarding(ctx, u, msgProfileRestart)
		return
	}

	d.guard(ctx, u, func() {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenerating})

		sess := &session.Session{State: session.StateWorkoutReview, PlanKind: models.WorkoutPersonal}
		plan, err := d.generatePlan(ctx, account, sess)
		if err != nil {
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenerationFailed})
			return
		}

		sess.Plan = plan
		if !d.saveSession(ctx, u, sess) {
			return
		}
		d.showPlan(ctx, u, plan)
	})
}

func (d *Dialog) acceptWorkout(ctx context.Context, u Update, account *models.Account) {
	sess, ok := d.reload(ctx, u, session.StateWorkoutReview)
	if !ok {
		return
	}

	kind := sess.PlanKind
	if kind == "" {
		kind = models.WorkoutPersonal
	}
	if _, err := d.store.AppendWorkout(ctx, models.WorkoutRecord{
		AccountID: account.ID,
		Type:      kind,
		Details:   sess.Plan,
		Date:      d.now(),
	}); err != nil {
		d.log.Errorw("Failed to save workout", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return
	}

	d.clearSession(ctx, u.TelegramID)
	d.send(ctx, d.menuReply(u.ChatID, account, msgWorkoutSaved))
}

// regenerateWorkout replaces the displayed plan. The session keeps the old plan if generation fails.
func (d *Dialog) regenerateWorkout(ctx context.Context, u Update, account *models.Account) {
	sess, ok := d.reload(ctx, u, session.StateWorkoutReview)
	if !ok {
		return
	}
	if !d.requireActive(ctx, u, account) {
		d.clearSession(ctx, u.TelegramID)
		return
	}

	d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenerating})

	// Rejected plan goes into the history
	sess.Remember(models.PlanExchange{Proposal: sess.Plan, Feedback: msgRegenFeedback}, d.opts.RegenHistory)
	plan, err := d.generatePlan(ctx, account, sess)
	if err != nil {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenerationFailed, Inline: reviewKeyboard()})
		return
	}

	sess.Plan = plan
	if !d.saveSession(ctx, u, sess) {
		return
	}
	d.showPlan(ctx, u, plan)
}

// generatePlan asks for a plan that avoids exercises from recent workouts and the
// plan currently on screen.
func (d *Dialog) generatePlan(ctx context.Context, account *models.Account, sess *session.Session) (string, error) {
	recent, err := d.store.ListRecentWorkouts(ctx, account.ID, d.opts.RecentWorkouts)
	if err != nil {
		d.log.Warnw("Failed to load recent workouts", "telegram_id", account.TelegramID, "error", err)
	}

	exclude := exclusionList(recent, sess.Plan)
	plan, err := d.gen.GenerateWorkoutPlan(ctx, gpt.PlanRequest{
		Profile:       account.Profile,
		Kind:          sess.PlanKind,
		ExerciseCount: d.pickExerciseCount(),
		Exclude:       exclude,
		History:       sess.History,
	})
	d.recordGeneration("workout_plan", err)
	if err != nil {
		d.log.Errorw("Failed to generate workout plan", "telegram_id", account.TelegramID, "error", err)
		return "", err
	}
	return plan, nil
}

func exclusionList(recent []models.WorkoutRecord, current string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(plan string) {
		for _, name := range gpt.ExerciseNames(plan) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	for _, w := range recent {
		add(w.Details)
	}
	add(current)
	return names
}

func (d *Dialog) showPlan(ctx context.Context, u Update, plan string) {
	d.send(ctx, Reply{ChatID: u.ChatID, Text: fmt.Sprintf(msgWorkoutReview, plan), Inline: reviewKeyboard()})
}

func reviewKeyboard() [][]Button {
	return [][]Button{{
		{Text: btnTakeWorkout, Data: cbWorkoutAccept},
		{Text: btnRegenerate, Data: cbWorkoutRegen},
	}}
}
