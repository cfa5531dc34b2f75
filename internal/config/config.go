package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hray3182/HabitBell/internal/calendar"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURI     string `yaml:"-"`
	TelegramToken   string `yaml:"-"`
	AIAPIKey        string `yaml:"-"`
	AIBaseURL       string `yaml:"ai_base_url"`
	AIModel         string `yaml:"ai_model"`
	HTTPListen      string `yaml:"http_listen"`
	HookToken       string `yaml:"-"`
	DefaultTimezone string `yaml:"default_timezone"`
	Engine          Engine `yaml:"engine"`
}

// Engine holds the reminder engine tunables.
type Engine struct {
	// LookaheadDays bounds the next-occurrence search.
	LookaheadDays int `yaml:"lookahead_days"`

	// DriftTolerance is how far a fire may land from its instant and still send.
	DriftTolerance time.Duration `yaml:"drift_tolerance"`

	// PollInterval is how often the job queue is checked for due fires.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Workers bounds concurrently running fires.
	Workers int `yaml:"workers"`

	// RearmSweep is a cron schedule for re-arming habits with no pending fire.
	RearmSweep string `yaml:"rearm_sweep"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		AIBaseURL:       "https://openrouter.ai/api/v1",
		AIModel:         "openai/gpt-4o-mini",
		HTTPListen:      ":8080",
		DefaultTimezone: "Asia/Taipei",
		Engine: Engine{
			LookaheadDays:  120,
			DriftTolerance: 2 * time.Minute,
			PollInterval:   10 * time.Second,
			Workers:        4,
			RearmSweep:     "17 3 * * *",
		},
	}
}

// Normalize fills zero values with defaults so partial files still work.
func (c *Config) Normalize() {
	d := Default()
	if c.AIBaseURL == "" {
		c.AIBaseURL = d.AIBaseURL
	}
	if c.AIModel == "" {
		c.AIModel = d.AIModel
	}
	if c.HTTPListen == "" {
		c.HTTPListen = d.HTTPListen
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = d.DefaultTimezone
	}
	if c.Engine.LookaheadDays <= 0 {
		c.Engine.LookaheadDays = d.Engine.LookaheadDays
	}
	if c.Engine.DriftTolerance <= 0 {
		c.Engine.DriftTolerance = d.Engine.DriftTolerance
	}
	if c.Engine.PollInterval <= 0 {
		c.Engine.PollInterval = d.Engine.PollInterval
	}
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = d.Engine.Workers
	}
	if c.Engine.RearmSweep == "" {
		c.Engine.RearmSweep = d.Engine.RearmSweep
	}
}

// Validate reports settings that would fail later at startup.
func (c *Config) Validate() error {
	if _, err := calendar.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}
	if c.Engine.RearmSweep != "off" {
		if _, err := cron.ParseStandard(c.Engine.RearmSweep); err != nil {
			return fmt.Errorf("REARM_SWEEP: %w", err)
		}
	}
	return nil
}

// Load reads .env, then the optional YAML file named by CONFIG_FILE, then the
// environment. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.DatabaseURI = os.Getenv("DATABASE_URI")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	cfg.HookToken = os.Getenv("HOOK_TOKEN")
	cfg.AIBaseURL = getEnvOrDefault("AI_BASE_URL", cfg.AIBaseURL)
	cfg.AIModel = getEnvOrDefault("AI_MODEL", cfg.AIModel)
	cfg.HTTPListen = getEnvOrDefault("HTTP_LISTEN", cfg.HTTPListen)
	cfg.DefaultTimezone = getEnvOrDefault("DEFAULT_TIMEZONE", cfg.DefaultTimezone)
	cfg.Engine.RearmSweep = getEnvOrDefault("REARM_SWEEP", cfg.Engine.RearmSweep)

	var errs []error
	cfg.Engine.LookaheadDays = getEnvInt("LOOKAHEAD_DAYS", cfg.Engine.LookaheadDays, &errs)
	cfg.Engine.Workers = getEnvInt("WORKERS", cfg.Engine.Workers, &errs)
	cfg.Engine.DriftTolerance = getEnvDuration("DRIFT_TOLERANCE", cfg.Engine.DriftTolerance, &errs)
	cfg.Engine.PollInterval = getEnvDuration("POLL_INTERVAL", cfg.Engine.PollInterval, &errs)
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
