package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitness-bot/internal/export"
	"fitness-bot/internal/gpt"
	"fitness-bot/internal/models"
)

// classify answers idle free text. Recognized meals and workouts are logged; anything
// else is relayed as the assistant's reply.
func (d *Dialog) classify(ctx context.Context, u Update, account *models.Account) {
	if !d.requireActive(ctx, u, account) {
		return
	}

	d.guard(ctx, u, func() {
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgThinking})

		text, err := d.gen.GenerateText(ctx, "", u.Text)
		d.recordGeneration("text", err)
		if err != nil {
			d.log.Errorw("Failed to generate reply", "telegram_id", u.TelegramID, "error", err)
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenerationFailed})
			return
		}

		// Plain answer, relay as is
		payload, ok := gpt.ExtractPayload(text)
		if !ok || !payload.HasDescription() || !(payload.IsMeal() || payload.IsWorkout()) {
			d.send(ctx, Reply{ChatID: u.ChatID, Text: text})
			return
		}

		if payload.Prefix != "" {
			d.send(ctx, Reply{ChatID: u.ChatID, Text: payload.Prefix})
		}

		// Save the meal or workout
		var confirmation string
		if payload.IsMeal() {
			meal, err := d.store.AppendMeal(ctx, mealFromPayload(account, payload, d.now(), nil))
			if err != nil {
				d.log.Errorw("Failed to save meal", "telegram_id", u.TelegramID, "error", err)
				d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
				return
			}
			confirmation = fmt.Sprintf(msgMealLogged, meal.Description, formatCalories(meal.Calories))
		} else {
			workout, err := d.store.AppendWorkout(ctx, models.WorkoutRecord{
				AccountID:      account.ID,
				Type:           loggedWorkoutType(payload.WorkoutType),
				Details:        strings.TrimSpace(payload.Description),
				Date:           d.now(),
				CaloriesBurned: payload.CaloriesBurned,
			})
			if err != nil {
				d.log.Errorw("Failed to save workout", "telegram_id", u.TelegramID, "error", err)
				d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
				return
			}
			confirmation = fmt.Sprintf(msgWorkoutLogged, workout.Details)
		}
		d.send(ctx, Reply{ChatID: u.ChatID, Text: confirmation})
	})
}

func (d *Dialog) sendHistory(ctx context.Context, u Update, account *models.Account) {
	if !d.requireActive(ctx, u, account) {
		return
	}

	workouts, err := d.store.ListRecentWorkouts(ctx, account.ID, d.opts.HistoryLimit)
	if err != nil {
		d.log.Errorw("Failed to load workouts", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgHistoryFailed})
		return
	}
	meals, err := d.store.ListRecentMeals(ctx, account.ID, d.opts.HistoryLimit)
	if err != nil {
		d.log.Errorw("Failed to load meals", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgHistoryFailed})
		return
	}
	if len(workouts) == 0 && len(meals) == 0 {
		d.send(ctx, d.menuReply(u.ChatID, account, msgHistoryEmpty))
		return
	}

	data, err := export.History(workouts, meals)
	if err != nil {
		d.log.Errorw("Failed to build history workbook", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgHistoryFailed})
		return
	}
	if err := d.messenger.SendDocument(ctx, u.ChatID, export.FileName, data, msgHistoryCaption); err != nil {
		d.log.Errorw("Failed to send history", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgHistoryFailed})
	}
}

func mealFromPayload(account *models.Account, p gpt.Payload, now time.Time, photoRef *string) models.MealRecord {
	return models.MealRecord{
		AccountID:   account.ID,
		Description: strings.TrimSpace(p.Description),
		Date:        now,
		Calories:    p.Calories,
		Proteins:    p.Proteins,
		Fats:        p.Fats,
		Carbs:       p.Carbs,
		PhotoRef:    photoRef,
	}
}

// loggedWorkoutType keeps free_trial reserved for the onboarding plan.
func loggedWorkoutType(s string) models.WorkoutType {
	if models.WorkoutType(s) == models.WorkoutPersonal {
		return models.WorkoutPersonal
	}
	return models.WorkoutCustom
}
