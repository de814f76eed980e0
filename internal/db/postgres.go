package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitness-bot/internal/models"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

type Options struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

func NewPostgresDB(cfg Options) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const accountColumns = `id, telegram_id, username, first_name, last_name,
        goal, level, health_issues, location, workouts_per_week, height, weight, age, gender,
        role, is_paid, paid_until, payment_method_id, last_active_at, last_charge_attempt_at,
        created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var role string
	err := row.Scan(
		&a.ID, &a.TelegramID, &a.Username, &a.FirstName, &a.LastName,
		&a.Profile.Goal, &a.Profile.Level, &a.Profile.HealthIssues, &a.Profile.Location,
		&a.Profile.WorkoutsPerWeek, &a.Profile.Height, &a.Profile.Weight, &a.Profile.Age, &a.Profile.Gender,
		&role, &a.IsPaid, &a.PaidUntil, &a.PaymentMethodID, &a.LastActiveAt, &a.LastChargeAttemptAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	return &a, nil
}

func (db *PostgresDB) queryAccounts(ctx context.Context, query string, args ...interface{}) ([]models.Account, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// GetAccount returns nil, nil when the account does not exist.
func (db *PostgresDB) GetAccount(ctx context.Context, telegramID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE telegram_id = $1`

	account, err := scanAccount(db.pool.QueryRow(ctx, query, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// CreateAccount inserts the account unless one already exists for the telegram id.
func (db *PostgresDB) CreateAccount(ctx context.Context, a models.Account) (*models.Account, error) {
	query := `
        INSERT INTO users (telegram_id, username, first_name, last_name, role, is_paid, paid_until)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (telegram_id) DO NOTHING
    `
	role := a.Role
	if role == "" {
		role = models.RoleUser
	}

	if _, err := db.pool.Exec(ctx, query,
		a.TelegramID, a.Username, a.FirstName, a.LastName, string(role), a.IsPaid, a.PaidUntil,
	); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return db.GetAccount(ctx, a.TelegramID)
}

func (db *PostgresDB) UpdateProfile(ctx context.Context, telegramID int64, p models.Profile) (*models.Account, error) {
	query := `
        UPDATE users
        SET goal = $2, level = $3, health_issues = $4, location = $5, workouts_per_week = $6,
            height = $7, weight = $8, age = $9, gender = $10, updated_at = NOW()
        WHERE telegram_id = $1
        RETURNING ` + accountColumns

	account, err := scanAccount(db.pool.QueryRow(ctx, query, telegramID,
		p.Goal, p.Level, p.HealthIssues, p.Location, p.WorkoutsPerWeek,
		p.Height, p.Weight, p.Age, p.Gender,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return account, nil
}

func (db *PostgresDB) MarkActive(ctx context.Context, telegramID int64, now time.Time) error {
	_, err := db.pool.Exec(ctx, `UPDATE users SET last_active_at = $2 WHERE telegram_id = $1`, telegramID, now)
	return err
}

func (db *PostgresDB) ListInactivePaid(ctx context.Context, before time.Time) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users
        WHERE is_paid AND last_active_at IS NOT NULL AND last_active_at < $1
        ORDER BY id`
	return db.queryAccounts(ctx, query, before)
}

func (db *PostgresDB) ListExpiredPaid(ctx context.Context, now time.Time) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users
        WHERE is_paid AND paid_until IS NOT NULL AND paid_until < $1
        ORDER BY id`
	return db.queryAccounts(ctx, query, now)
}

func (db *PostgresDB) SetPaid(ctx context.Context, telegramID int64, paid bool) error {
	_, err := db.pool.Exec(ctx, `UPDATE users SET is_paid = $2, updated_at = NOW() WHERE telegram_id = $1`, telegramID, paid)
	return err
}

// ListAccountsForRenewal returns accounts with a stored instrument whose subscription ends
// before dueBefore and that had no charge attempt after attemptedBefore.
func (db *PostgresDB) ListAccountsForRenewal(ctx context.Context, dueBefore, attemptedBefore time.Time) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users
        WHERE payment_method_id IS NOT NULL AND payment_method_id <> ''
          AND paid_until IS NOT NULL AND paid_until <= $1
          AND (last_charge_attempt_at IS NULL OR last_charge_attempt_at < $2)
        ORDER BY paid_until`
	return db.queryAccounts(ctx, query, dueBefore, attemptedBefore)
}

func (db *PostgresDB) SetSubscriptionUntil(ctx context.Context, telegramID int64, until time.Time) error {
	tag, err := db.pool.Exec(ctx, `
        UPDATE users SET is_paid = TRUE, paid_until = $2, updated_at = NOW()
        WHERE telegram_id = $1`, telegramID, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (db *PostgresDB) MarkChargeAttempt(ctx context.Context, telegramID int64, at time.Time) error {
	_, err := db.pool.Exec(ctx, `UPDATE users SET last_charge_attempt_at = $2 WHERE telegram_id = $1`, telegramID, at)
	return err
}

// SetPaymentMethod stores the instrument reference; nil removes it.
func (db *PostgresDB) SetPaymentMethod(ctx context.Context, telegramID int64, ref *string) error {
	_, err := db.pool.Exec(ctx, `
        UPDATE users SET payment_method_id = $2, updated_at = NOW()
        WHERE telegram_id = $1`, telegramID, ref)
	return err
}

func (db *PostgresDB) ListAccountsByAudience(ctx context.Context, audience models.Audience) ([]models.Account, error) {
	where, err := audienceClause(audience)
	if err != nil {
		return nil, err
	}
	return db.queryAccounts(ctx, `SELECT `+accountColumns+` FROM users WHERE `+where+` ORDER BY id`)
}

func audienceClause(audience models.Audience) (string, error) {
	switch audience {
	case models.AudienceAll:
		return "TRUE", nil
	case models.AudiencePaid:
		return "is_paid", nil
	case models.AudienceFree:
		return "NOT is_paid", nil
	case models.AudienceTestAdmins:
		return "role = 'admin'", nil
	default:
		return "", fmt.Errorf("unknown audience %q", audience)
	}
}
