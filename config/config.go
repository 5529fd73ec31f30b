package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken      string
	GuildID           string
	AnnounceChannelID string // Channel for level-up and milestone announcements

	// Storage
	StoreBackend string // "memory" or "postgres"
	DatabaseURL  string

	// NATS configuration, empty disables event forwarding
	NATSServers       string
	NATSSubjectPrefix string

	// OpenTelemetry
	OTelEnabled     bool
	OTelServiceName string
	MetricsInterval time.Duration

	// Scheduler
	SweepInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Economy holds the canonical constant set of the referral economy
	Economy Economy

	// Environment
	Environment string // "development", "production" or "test"
}

// Economy is the single set of tuning constants used by every engine component.
type Economy struct {
	// Invites
	InviteBaseReward decimal.Decimal
	LeavePenaltyRate decimal.Decimal // share of InviteBaseReward taken when an invited member leaves
	StreakRate       float64
	StreakWindow     time.Duration
	CascadeMaxDepth  int
	CascadeFloor     decimal.Decimal
	Milestones       []int

	// Activity and levels
	MessageXP       int64
	MessageCooldown time.Duration
	LevelXPBase     int64
	DecayGraceDays  float64
	DecayRate       float64
	HeatWindow      time.Duration

	// Daily bonus
	DailyBonusBase      decimal.Decimal
	DailyBonusPerLevel  decimal.Decimal
	DailyBonusMaxStreak int
	DailyBonusXP        int64
	DailyBonusCooldown  time.Duration

	// Duels and gifts
	MaxStake          decimal.Decimal
	MaxGift           decimal.Decimal
	WagerTTL          time.Duration
	WagerXPMultiplier float64

	// Verification
	VerificationSymbols  []string
	VerificationLength   int
	VerificationTTL      time.Duration
	VerificationAttempts int
	BlacklistDuration    time.Duration
}

// LeavePenalty is the amount taken from an inviter when an invited member leaves
func (e Economy) LeavePenalty() decimal.Decimal {
	return e.InviteBaseReward.Mul(e.LeavePenaltyRate)
}

// DefaultEconomy returns the canonical constants
func DefaultEconomy() Economy {
	return Economy{
		InviteBaseReward: decimal.NewFromInt(10),
		LeavePenaltyRate: decimal.RequireFromString("0.5"),
		StreakRate:       0.1,
		StreakWindow:     24 * time.Hour,
		CascadeMaxDepth:  10,
		CascadeFloor:     decimal.RequireFromString("0.01"),
		Milestones:       []int{10, 25, 50, 100, 250, 500, 1000},

		MessageXP:       1,
		MessageCooldown: 30 * time.Second,
		LevelXPBase:     100,
		DecayGraceDays:  7,
		DecayRate:       0.95,
		HeatWindow:      24 * time.Hour,

		DailyBonusBase:      decimal.NewFromInt(10),
		DailyBonusPerLevel:  decimal.NewFromInt(2),
		DailyBonusMaxStreak: 30,
		DailyBonusXP:        50,
		DailyBonusCooldown:  24 * time.Hour,

		MaxStake:          decimal.NewFromInt(1000),
		MaxGift:           decimal.NewFromInt(10000),
		WagerTTL:          60 * time.Second,
		WagerXPMultiplier: 0.1,

		VerificationSymbols:  []string{"❤️", "💕", "💖", "💗", "💝", "💘", "💜", "💙"},
		VerificationLength:   4,
		VerificationTTL:      5 * time.Minute,
		VerificationAttempts: 3,
		BlacklistDuration:    24 * time.Hour,
	}
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from the environment, reading .env first when present
func load() (*Config, error) {
	// A missing .env file is fine, the process environment still applies
	_ = godotenv.Load()

	config := &Config{
		// Discord
		DiscordToken:      os.Getenv("DISCORD_TOKEN"),
		GuildID:           os.Getenv("GUILD_ID"),
		AnnounceChannelID: os.Getenv("ANNOUNCE_CHANNEL_ID"),

		// Storage
		StoreBackend: getEnvWithDefault("STORE_BACKEND", StoreMemory),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		// NATS
		NATSServers:       os.Getenv("NATS_SERVERS"),
		NATSSubjectPrefix: getEnvWithDefault("NATS_SUBJECT_PREFIX", "roombot.events"),

		// OpenTelemetry
		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName: getEnvWithDefault("OTEL_SERVICE_NAME", "roombot"),
		MetricsInterval: getDurationEnv("METRICS_INTERVAL", time.Minute),

		SweepInterval: getDurationEnv("SWEEP_INTERVAL", 10*time.Second),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		Economy: loadEconomy(),

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks required settings for the selected environment and backend
func (c *Config) Validate() error {
	if c.StoreBackend != StoreMemory && c.StoreBackend != StorePostgres {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMemory, StorePostgres, c.StoreBackend)
	}
	if c.Environment == "test" {
		return nil
	}
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.StoreBackend == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}

func loadEconomy() Economy {
	e := DefaultEconomy()

	e.InviteBaseReward = getDecimalEnv("INVITE_BASE_POINTS", e.InviteBaseReward)
	e.LeavePenaltyRate = getDecimalEnv("LEAVE_PENALTY_RATE", e.LeavePenaltyRate)
	e.StreakRate = getFloatEnv("STREAK_BONUS_MULTIPLIER", e.StreakRate)
	e.CascadeMaxDepth = getIntEnv("CASCADE_MAX_DEPTH", e.CascadeMaxDepth)

	e.MessageXP = int64(getIntEnv("ACTIVITY_XP_MESSAGE", int(e.MessageXP)))
	e.MessageCooldown = getDurationEnv("MESSAGE_COOLDOWN", e.MessageCooldown)
	e.LevelXPBase = int64(getIntEnv("LEVEL_XP_REQUIRED", int(e.LevelXPBase)))
	e.DecayGraceDays = getFloatEnv("ACTIVITY_DECAY_DAYS", e.DecayGraceDays)
	e.HeatWindow = getDurationEnv("HEAT_DECAY_WINDOW", e.HeatWindow)

	e.DailyBonusXP = int64(getIntEnv("ACTIVITY_XP_DAILY", int(e.DailyBonusXP)))
	e.DailyBonusCooldown = getDurationEnv("DAILY_BONUS_COOLDOWN", e.DailyBonusCooldown)

	e.MaxStake = getDecimalEnv("MAX_WAGER", e.MaxStake)
	e.MaxGift = getDecimalEnv("MAX_GIFT", e.MaxGift)
	e.WagerTTL = getDurationEnv("WAGER_EXPIRY", e.WagerTTL)
	e.WagerXPMultiplier = getFloatEnv("WAGER_XP_MULTIPLIER", e.WagerXPMultiplier)

	e.VerificationTTL = getDurationEnv("VERIFICATION_TIMEOUT", e.VerificationTTL)
	e.BlacklistDuration = getDurationEnv("BLACKLIST_DURATION", e.BlacklistDuration)

	if milestones := os.Getenv("MILESTONES"); milestones != "" {
		var parsed []int
		for _, s := range strings.Split(milestones, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if v, err := strconv.Atoi(s); err == nil {
				parsed = append(parsed, v)
			}
		}
		if len(parsed) > 0 {
			e.Milestones = parsed
		}
	}

	return e
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s") or a plain number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if parsed, err := decimal.NewFromString(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:       "test",
		StoreBackend:      StoreMemory,
		NATSSubjectPrefix: "roombot.events",
		SweepInterval:     time.Second,
		LogLevel:          "debug",
		LogFormat:         "text",
		Economy:           DefaultEconomy(),
	}
}

// DatabaseURLFromEnv reads DATABASE_URL without validating the rest of the
// configuration, for tools like the migrate command that need nothing else.
func DatabaseURLFromEnv() string {
	_ = godotenv.Load()
	return os.Getenv("DATABASE_URL")
}
