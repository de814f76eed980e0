// internal/models/user.go
package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile holds the onboarding questionnaire answers.
type Profile struct {
	Goal            string `json:"goal"`
	Level           string `json:"level"`
	HealthIssues    string `json:"health_issues"`
	Location        string `json:"location"`
	WorkoutsPerWeek int    `json:"workouts_per_week"`
	Height          int    `json:"height"`
	Weight          int    `json:"weight"`
	Age             int    `json:"age"`
	Gender          string `json:"gender"`
}

// Complete reports whether every questionnaire answer is present.
func (p Profile) Complete() bool {
	return p.Goal != "" && p.Level != "" && p.HealthIssues != "" && p.Location != "" &&
		p.WorkoutsPerWeek > 0 && p.Height > 0 && p.Weight > 0 && p.Age > 0 && p.Gender != ""
}

// Account is one chat identity with its profile and subscription state.
type Account struct {
	ID                  int64      `json:"id"`
	TelegramID          int64      `json:"telegram_id"`
	Username            string     `json:"username"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Profile             Profile    `json:"profile"`
	Role                Role       `json:"role"`
	IsPaid              bool       `json:"is_paid"`
	PaidUntil           *time.Time `json:"paid_until"`
	PaymentMethodID     *string    `json:"payment_method_id"`
	LastActiveAt        *time.Time `json:"last_active_at"`
	LastChargeAttemptAt *time.Time `json:"last_charge_attempt_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// HasInstrument reports whether a payment instrument is stored for auto-charge.
func (a *Account) HasInstrument() bool {
	return a != nil && a.PaymentMethodID != nil && *a.PaymentMethodID != ""
}

// Audience selects broadcast recipients.
type Audience string

const (
	AudienceAll        Audience = "all"
	AudiencePaid       Audience = "paid"
	AudienceFree       Audience = "free"
	AudienceTestAdmins Audience = "test_admins"
)

var Audiences = []Audience{AudienceAll, AudiencePaid, AudienceFree, AudienceTestAdmins}

func ParseAudience(s string) (Audience, bool) {
	for _, a := range Audiences {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}
