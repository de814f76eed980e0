package bot

import (
	"context"
	"fmt"
	"strconv"

	"fitness-bot/internal/gpt"
	"fitness-bot/internal/models"
	"fitness-bot/internal/session"
)

func (d *Dialog) startCalorieCapture(ctx context.Context, u Update, account *models.Account) {
	if !d.requireActive(ctx, u, account) {
		return
	}

	sess := &session.Session{State: session.StateCalorieCapture, Step: session.StepAwaitingPhoto}
	if !d.saveSession(ctx, u, sess) {
		return
	}
	d.send(ctx, Reply{ChatID: u.ChatID, Text: msgSendPhoto})
}

// capturePhoto analyzes a meal photo. A failed analysis keeps the capture open for another photo.
func (d *Dialog) capturePhoto(ctx context.Context, u Update, account *models.Account) {
	if !d.requireActive(ctx, u, account) {
		d.clearSession(ctx, u.TelegramID)
		return
	}

	d.guard(ctx, u, func() {
		if _, ok := d.reload(ctx, u, session.StateCalorieCapture); !ok {
			return
		}

		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgAnalyzingPhoto})

		// Resolve the file and send it to the vision model
		photoURL, err := d.messenger.FileURL(ctx, u.PhotoFileID)
		if err != nil {
			d.log.Errorw("Failed to resolve photo URL", "telegram_id", u.TelegramID, "error", err)
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
			return
		}

		text, err := d.gen.AnalyzePhoto(ctx, photoURL)
		d.recordGeneration("photo", err)
		if err != nil {
			d.log.Errorw("Failed to analyze photo", "telegram_id", u.TelegramID, "error", err)
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenerationFailed})
			return
		}

		d.clearSession(ctx, u.TelegramID)

		// Parse the JSON part of the answer
		payload, ok := gpt.ExtractPayload(text)
		if !ok {
			d.log.Warnw("Photo analysis returned no structured payload", "telegram_id", u.TelegramID)
			d.send(ctx, d.menuReply(u.ChatID, account, text))
			return
		}
		if !payload.HasDescription() {
			d.send(ctx, d.menuReply(u.ChatID, account, msgMealRejected))
			return
		}

		photoRef := u.PhotoFileID
		meal, err := d.store.AppendMeal(ctx, mealFromPayload(account, payload, d.now(), &photoRef))
		if err != nil {
			d.log.Errorw("Failed to save meal", "telegram_id", u.TelegramID, "error", err)
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
			return
		}
		d.send(ctx, d.menuReply(u.ChatID, account, fmt.Sprintf(msgMealSaved, meal.Description, formatCalories(meal.Calories))))
	})
}

func formatCalories(v *float64) string {
	if v == nil {
		return "?"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
