// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitness-bot/internal/bot"
	"fitness-bot/internal/broadcast"
	"fitness-bot/internal/config"
	"fitness-bot/internal/db"
	"fitness-bot/internal/gpt"
	"fitness-bot/internal/metrics"
	"fitness-bot/internal/payment"
	"fitness-bot/internal/server"
	"fitness-bot/internal/session"
	"fitness-bot/internal/subscription"
	"fitness-bot/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatalw("Failed to load config", "error", err)
	}

	l := logger.New(cfg.Log.Level)
	if cfg.Log.Development {
		l = logger.NewDevelopment()
	}
	defer l.Sync()
	l.Info("Starting fitness bot...")

	if err := cfg.Validate(); err != nil {
		l.Fatalw("Invalid configuration", "error", err)
	}

	// Initialize database connection with retry
	var database *db.PostgresDB
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(db.Options{
			Host:         cfg.DB.Host,
			Port:         cfg.DB.Port,
			User:         cfg.DB.User,
			Password:     cfg.DB.Password,
			DBName:       cfg.DB.Name,
			SSLMode:      cfg.DB.SSLMode,
			MaxOpenConns: cfg.DB.MaxOpenConns,
			MaxIdleConns: cfg.DB.MaxIdleConns,
			ConnLifetime: cfg.DB.ConnLifetime,
		})
		if err == nil {
			break
		}
		l.Errorw("Failed to connect to database, retrying...", "attempt", i+1, "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if database == nil {
		l.Fatalw("Failed to connect to database after multiple attempts", "error", err)
	}
	defer database.Close()

	// Migrate once the database is reachable
	if cfg.DB.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseURL()); err != nil {
			l.Fatalw("Failed to run migrations", "error", err)
		}
		l.Info("Database migrations applied")
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		redisStore, err := session.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SessionTTL)
		if err != nil {
			l.Fatalw("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		l.Infow("Using Redis session store", "addr", cfg.Redis.Addr)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	gptClient := gpt.NewClient(cfg.GPT.APIKey).
		WithModel(cfg.GPT.Model).
		WithVisionModel(cfg.GPT.VisionModel).
		WithLimits(cfg.GPT.MaxTokens, cfg.GPT.Temperature).
		WithLogger(l)
	if cfg.Gemini.APIKey != "" {
		gemini, err := gpt.NewGeminiAnalyzer(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			l.Fatalw("Failed to create Gemini client", "error", err)
		}
		defer gemini.Close()
		gptClient = gptClient.WithFallback(gemini)
	}

	stripeClient := payment.NewStripeClient(payment.Options{
		SecretKey:   cfg.Stripe.SecretKey,
		WebhookKey:  cfg.Stripe.WebhookKey,
		ProductID:   cfg.Stripe.ProductID,
		PriceID:     cfg.Stripe.PriceID,
		Amount:      cfg.Subscription.Amount,
		Currency:    cfg.Subscription.Currency,
		Description: cfg.Subscription.Description,
	})

	api, err := bot.NewBotAPI(cfg.Telegram.Token, cfg.Log.Development)
	if err != nil {
		l.Fatalw("Failed to create Telegram bot", "error", err)
	}
	messenger := bot.NewTelegramMessenger(api, l)

	manager := subscription.NewManager(database, stripeClient, messenger, recorder, l, subscription.Options{
		RenewalPeriod:       cfg.Subscription.RenewalPeriod,
		RenewalDaysAhead:    cfg.Subscription.RenewalDaysAhead,
		ChargeRetryInterval: cfg.Subscription.ChargeRetryInterval,
		InactivityThreshold: cfg.Subscription.InactivityThreshold,
		Amount:              cfg.Subscription.Amount,
		Currency:            cfg.Subscription.Currency,
	})
	scheduler, err := subscription.NewScheduler(manager, recorder, l, subscription.Schedules{
		Reminders:    cfg.Subscription.ReminderSchedule,
		Deactivation: cfg.Subscription.DeactivationSchedule,
		AutoCharge:   cfg.Subscription.AutoChargeSchedule,
	})
	if err != nil {
		l.Fatalw("Failed to create scheduler", "error", err)
	}

	orchestrator := broadcast.NewOrchestrator(database, messenger, recorder, l, broadcast.Options{
		RatePerSecond: cfg.Broadcast.RatePerSecond,
		ProgressEvery: cfg.Broadcast.ProgressEvery,
	})

	dialog := bot.NewDialog(bot.Deps{
		Store:         database,
		Sessions:      sessions,
		Generator:     gptClient,
		Biller:        stripeClient,
		Subscriptions: manager,
		Broadcaster:   orchestrator,
		Messenger:     messenger,
		Metrics:       recorder,
		Logger:        l.Named("dialog"),
	}, bot.Options{
		AdminIDs:       cfg.Telegram.AdminIDs,
		TrialDays:      cfg.Subscription.TrialDays,
		Amount:         cfg.Subscription.Amount,
		Currency:       cfg.Subscription.Currency,
		MinExercises:   cfg.Workout.MinExercises,
		MaxExercises:   cfg.Workout.MaxExercises,
		RecentWorkouts: cfg.Workout.RecentWorkouts,
		RegenHistory:   cfg.Workout.RegenHistory,
		HistoryLimit:   cfg.Workout.HistoryLimit,
		ReturnURL:      bot.ReturnURL(api),
	})
	telegramBot := bot.NewTelegramBot(api, dialog, l)

	handlers := server.Handlers{
		Stripe:  bot.NewStripeWebhookHandler(stripeClient, manager, l),
		Metrics: metrics.Handler(registry),
	}
	if cfg.Telegram.Mode == "webhook" {
		handlers.Telegram = telegramBot.WebhookHandler(cfg.Telegram.WebhookSecret)
	}

	httpServer := server.NewServer(cfg.Server.Port, handlers, l)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	if cfg.Telegram.Mode == "webhook" {
		webhookURL := cfg.Telegram.WebhookURL + "/webhook/telegram/" + cfg.Telegram.WebhookSecret
		if err := telegramBot.RegisterWebhook(webhookURL); err != nil {
			l.Fatalw("Failed to register Telegram webhook", "error", err)
		}
	} else if err := telegramBot.Start(context.Background()); err != nil {
		l.Fatalw("Failed to start Telegram bot", "error", err)
	}

	scheduler.Start()
	l.Infow("Fitness bot started", "mode", cfg.Telegram.Mode, "port", cfg.Server.Port)

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down bot...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stop intake first, then background work
	if err := httpServer.Stop(ctx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}
	if err := telegramBot.Stop(ctx); err != nil {
		l.Errorw("Error during bot shutdown", "error", err)
	}
	if err := scheduler.Stop(ctx); err != nil {
		l.Errorw("Error during scheduler shutdown", "error", err)
	}
	if err := orchestrator.Shutdown(ctx); err != nil {
		l.Errorw("Error during broadcast shutdown", "error", err)
	}

	l.Info("Bot stopped successfully")
}
