package models

import "time"

type WorkoutType string

const (
	WorkoutFreeTrial WorkoutType = "free_trial"
	WorkoutPersonal  WorkoutType = "personal"
	WorkoutCustom    WorkoutType = "custom"
)

// WorkoutRecord is an append-only workout log entry.
type WorkoutRecord struct {
	ID             int64       `json:"id"`
	AccountID      int64       `json:"account_id"`
	Type           WorkoutType `json:"workout_type"`
	Details        string      `json:"details"`
	Date           time.Time   `json:"date"`
	CaloriesBurned *float64    `json:"calories_burned"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MealRecord is an append-only meal log entry.
type MealRecord struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Calories    *float64  `json:"calories"`
	Proteins    *float64  `json:"proteins"`
	Fats        *float64  `json:"fats"`
	Carbs       *float64  `json:"carbs"`
	PhotoRef    *string   `json:"photo_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlanExchange is one rejected workout proposal kept as regeneration context.
type PlanExchange struct {
	Proposal string `json:"proposal"`
	Feedback string `json:"feedback"`
}

type PaymentKind string

const (
	PaymentCheckout PaymentKind = "checkout"
	PaymentRenewal  PaymentKind = "renewal"
	PaymentManual   PaymentKind = "manual"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

type Payment struct {
	ID                int64       `json:"id"`
	AccountID         int64       `json:"account_id"`
	Amount            int64       `json:"amount"`
	Currency          string      `json:"currency"`
	ProviderPaymentID string      `json:"provider_payment_id"`
	Kind              PaymentKind `json:"kind"`
	Status            string      `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
