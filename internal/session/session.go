package session

import (
	"context"
	"time"

	"fitness-bot/internal/models"
)

type State string

const (
	StateIdle             State = ""
	StateOnboarding       State = "onboarding"
	StateWorkoutReview    State = "workout_review"
	StateCalorieCapture   State = "calorie_capture"
	StateBroadcastCompose State = "broadcast_compose"
)

// Onboarding steps, in questionnaire order.
const (
	StepGoal            = "goal"
	StepLevel           = "level"
	StepHealth          = "health"
	StepLocation        = "location"
	StepWeeklyFrequency = "weekly_frequency"
	StepHeight          = "height"
	StepWeight          = "weight"
	StepAge             = "age"
	StepGender          = "gender"
	StepConfirm         = "confirm"
)

var OnboardingSteps = []string{
	StepGoal, StepLevel, StepHealth, StepLocation, StepWeeklyFrequency,
	StepHeight, StepWeight, StepAge, StepGender, StepConfirm,
}

// NextOnboardingStep returns the step after step, or StepConfirm when step is last.
func NextOnboardingStep(step string) string {
	for i, s := range OnboardingSteps {
		if s == step && i+1 < len(OnboardingSteps) {
			return OnboardingSteps[i+1]
		}
	}
	return StepConfirm
}

const StepAwaitingPhoto = "awaiting_photo"

// Broadcast compose steps.
const (
	StepBroadcastText     = "text"
	StepBroadcastAudience = "audience"
	StepBroadcastConfirm  = "confirm"
)

type BroadcastDraft struct {
	Text     string          `json:"text"`
	Audience models.Audience `json:"audience"`
}

// Session is the in-progress dialog of one account. The zero value is Idle.
type Session struct {
	TelegramID int64                 `json:"telegram_id"`
	State      State                 `json:"state"`
	Step       string                `json:"step"`
	Answers    models.Profile        `json:"answers"`
	Plan       string                `json:"plan"`
	PlanKind   models.WorkoutType    `json:"plan_kind"`
	History    []models.PlanExchange `json:"history"`
	Broadcast  BroadcastDraft        `json:"broadcast"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func (s *Session) Idle() bool {
	return s.State == StateIdle
}

func (s *Session) In(state State, step string) bool {
	return s.State == state && s.Step == step
}

// Reset returns the session to Idle, dropping all flow data.
func (s *Session) Reset() {
	*s = Session{TelegramID: s.TelegramID}
}

// Remember appends an exchange, keeping at most limit of the newest ones.
func (s *Session) Remember(exchange models.PlanExchange, limit int) {
	s.History = append(s.History, exchange)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]models.PlanExchange(nil), s.History[len(s.History)-limit:]...)
	}
}

func (s *Session) clone() *Session {
	c := *s
	if s.History != nil {
		c.History = append([]models.PlanExchange(nil), s.History...)
	}
	return &c
}

// Store keeps dialog sessions and the per-account busy flag.
// The busy flag lives apart from session data: Clear never releases it.
type Store interface {
	Get(ctx context.Context, telegramID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context, telegramID int64) error
	// TryAcquire sets the busy flag and reports false if it was already set.
	TryAcquire(ctx context.Context, telegramID int64) (bool, error)
	Release(ctx context.Context, telegramID int64) error
	// Busy reports whether the flag is set without taking it.
	Busy(ctx context.Context, telegramID int64) (bool, error)
}
