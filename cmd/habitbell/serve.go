package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/HabitBell/internal/ai"
	"github.com/hray3182/HabitBell/internal/bot"
	"github.com/hray3182/HabitBell/internal/bot/handlers"
	"github.com/hray3182/HabitBell/internal/config"
	"github.com/hray3182/HabitBell/internal/database"
	"github.com/hray3182/HabitBell/internal/notify"
	"github.com/hray3182/HabitBell/internal/reminder"
	"github.com/hray3182/HabitBell/internal/repository"
	"github.com/hray3182/HabitBell/internal/scheduler"
	"github.com/hray3182/HabitBell/internal/server"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reminder engine, Telegram bot and hook server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// app holds everything the commands share once the database is up.
type app struct {
	cfg         *config.Config
	db          *database.DB
	jobs        *scheduler.Scheduler
	habits      *repository.HabitRepository
	completions *repository.CompletionRepository
	settings    *repository.UserSettingsRepository
	engine      *reminder.Engine
	service     *reminder.Service
}

// newApp connects to the database and wires the engine. sender may be nil
// for commands that never fire reminders.
func newApp(ctx context.Context, cfg *config.Config, sender reminder.Sender) (*app, error) {
	if cfg.DatabaseURI == "" {
		return nil, errors.New("DATABASE_URI is required")
	}

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Connected to database")

	a := &app{
		cfg:         cfg,
		db:          db,
		habits:      repository.NewHabitRepository(db),
		completions: repository.NewCompletionRepository(db),
		settings:    repository.NewUserSettingsRepository(db),
	}
	a.habits.SetDefaultTimezone(cfg.DefaultTimezone)

	a.jobs = scheduler.New(repository.NewJobRepository(db), scheduler.Options{
		PollInterval: cfg.Engine.PollInterval,
		Workers:      cfg.Engine.Workers,
	})
	a.engine = reminder.NewEngine(a.jobs, a.habits, a.completions, a.settings, sender, reminder.Options{
		LookaheadDays:  cfg.Engine.LookaheadDays,
		DriftTolerance: cfg.Engine.DriftTolerance,
		Ledger:         repository.NewDeliveryRepository(db),
	})
	a.jobs.Register(reminder.FireHandler, a.engine.Fire)

	// Initialize AI client (optional)
	var extractor reminder.PlanExtractor
	if cfg.AIAPIKey != "" {
		extractor = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		log.Printf("AI client initialized (model: %s)", cfg.AIModel)
	}
	a.service = reminder.NewService(a.engine, a.habits, a.habits, extractor)
	return a, nil
}

func (a *app) Close() {
	a.db.Close()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("failed to create Telegram API: %w", err)
	}

	a, err := newApp(ctx, cfg, notify.NewTelegramSender(tgAPI))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Database migrations completed")

	rearm := func() {
		n, err := a.engine.ArmAll(ctx)
		if err != nil {
			log.Printf("Failed to re-arm habits: %v", err)
			return
		}
		log.Printf("Re-armed %d habits", n)
	}
	rearm()

	if cfg.Engine.RearmSweep != "off" {
		sweep := cron.New()
		if _, err := sweep.AddFunc(cfg.Engine.RearmSweep, rearm); err != nil {
			return fmt.Errorf("invalid REARM_SWEEP: %w", err)
		}
		sweep.Start()
		defer func() { <-sweep.Stop().Done() }()
	}

	b := bot.New(tgAPI, &handlers.Repositories{
		Settings:    a.settings,
		Habits:      a.habits,
		Completions: a.completions,
	})
	srv := server.New(a.service, cfg.HookToken)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.jobs.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := b.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.HTTPListen)
	})

	log.Println("HabitBell is running. Press Ctrl+C to stop.")
	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("Shutting down...")
	return nil
}
