package db

import (
	"context"
	"errors"
	"fmt"

	"fitness-bot/internal/models"

	"github.com/jackc/pgx/v4"
)

var ErrAccountNotFound = errors.New("account not found")

func (db *PostgresDB) AppendWorkout(ctx context.Context, w models.WorkoutRecord) (*models.WorkoutRecord, error) {
	query := `
        INSERT INTO workouts (user_id, workout_type, details, date, calories_burned)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `

	err := db.pool.QueryRow(ctx, query,
		w.AccountID, string(w.Type), w.Details, w.Date, w.CaloriesBurned,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append workout: %w", err)
	}
	return &w, nil
}

func (db *PostgresDB) AppendMeal(ctx context.Context, m models.MealRecord) (*models.MealRecord, error) {
	query := `
        INSERT INTO meals (user_id, description, date, calories, proteins, fats, carbs, photo_ref)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `

	err := db.pool.QueryRow(ctx, query,
		m.AccountID, m.Description, m.Date, m.Calories, m.Proteins, m.Fats, m.Carbs, m.PhotoRef,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append meal: %w", err)
	}
	return &m, nil
}

// ListRecentWorkouts returns up to limit workouts, newest first.
func (db *PostgresDB) ListRecentWorkouts(ctx context.Context, accountID int64, limit int) ([]models.WorkoutRecord, error) {
	query := `
        SELECT id, user_id, workout_type, details, date, calories_burned, created_at
        FROM workouts
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `

	rows, err := db.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	defer rows.Close()

	var workouts []models.WorkoutRecord
	for rows.Next() {
		var w models.WorkoutRecord
		var kind string
		if err := rows.Scan(&w.ID, &w.AccountID, &kind, &w.Details, &w.Date, &w.CaloriesBurned, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}
		w.Type = models.WorkoutType(kind)
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}

// ListRecentMeals returns up to limit meals, newest first.
func (db *PostgresDB) ListRecentMeals(ctx context.Context, accountID int64, limit int) ([]models.MealRecord, error) {
	query := `
        SELECT id, user_id, description, date, calories, proteins, fats, carbs, photo_ref, created_at
        FROM meals
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `

	rows, err := db.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	var meals []models.MealRecord
	for rows.Next() {
		var m models.MealRecord
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Description, &m.Date,
			&m.Calories, &m.Proteins, &m.Fats, &m.Carbs, &m.PhotoRef, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

func (db *PostgresDB) HasTrialWorkout(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM workouts WHERE user_id = $1 AND workout_type = $2)`,
		accountID, string(models.WorkoutFreeTrial),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trial workout: %w", err)
	}
	return exists, nil
}

// GetPaymentByProviderID returns nil, nil for an unknown provider payment id.
func (db *PostgresDB) GetPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	query := `
        SELECT id, user_id, amount, currency, provider_payment_id, kind, status, created_at, updated_at
        FROM payments
        WHERE provider_payment_id = $1
    `

	var payment models.Payment
	var kind string
	err := db.pool.QueryRow(ctx, query, providerPaymentID).Scan(
		&payment.ID, &payment.AccountID, &payment.Amount, &payment.Currency,
		&payment.ProviderPaymentID, &kind, &payment.Status,
		&payment.CreatedAt, &payment.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by provider ID: %w", err)
	}
	payment.Kind = models.PaymentKind(kind)

	return &payment, nil
}

// SavePayment inserts the payment or refreshes the status of an existing one.
func (db *PostgresDB) SavePayment(ctx context.Context, payment *models.Payment) error {
	query := `
        INSERT INTO payments (user_id, amount, currency, provider_payment_id, kind, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (provider_payment_id) DO UPDATE
        SET status = EXCLUDED.status, updated_at = NOW()
        RETURNING id
    `

	return db.pool.QueryRow(ctx, query,
		payment.AccountID, payment.Amount, payment.Currency,
		payment.ProviderPaymentID, string(payment.Kind), payment.Status,
	).Scan(&payment.ID)
}
