package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/creator-xp/internal/domain"
)

// DefaultWelcomeMessage is used when no template is configured.
const DefaultWelcomeMessage = "👋 Welcome, <@{USER_ID}>! Hit the **Verify as Creator** button to unlock access."

// DefaultLeaderboardTitle heads the published leaderboard.
const DefaultLeaderboardTitle = "🏆 **Creator Leaderboard**"

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Discord     DiscordConfig     `yaml:"discord"`
	Auth        AuthConfig        `yaml:"auth"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Storage     StorageConfig     `yaml:"storage"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// DiscordConfig holds community gateway configuration
type DiscordConfig struct {
	Token                string  `yaml:"token"`
	GuildID              string  `yaml:"guild_id"`
	WelcomeChannelID     string  `yaml:"welcome_channel_id"`
	LeaderboardChannelID string  `yaml:"leaderboard_channel_id"`
	WelcomeMessage       string  `yaml:"welcome_message"`
	RequestsPerSecond    float64 `yaml:"requests_per_second"`
	Burst                int     `yaml:"burst"`
}

// AuthConfig holds the shared secrets for inbound calls
type AuthConfig struct {
	WebhookSecret  string `yaml:"webhook_secret"`
	InternalSecret string `yaml:"internal_secret"`
}

// LedgerConfig holds XP accrual settings
type LedgerConfig struct {
	XPPerOrder int64 `yaml:"xp_per_order"`
}

// LeaderboardConfig holds leaderboard-specific configuration
type LeaderboardConfig struct {
	Title           string        `yaml:"title"`
	PublishSize     int           `yaml:"publish_size"`
	DefaultLimit    int           `yaml:"default_limit"`
	MaxLimit        int           `yaml:"max_limit"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	ResolveWorkers  int           `yaml:"resolve_workers"`
}

// StorageConfig selects the ledger backend
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	NameTTL      time.Duration `yaml:"name_ttl"`
}

// KafkaConfig holds the relayed-webhook consumer configuration
type KafkaConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Brokers        []string      `yaml:"brokers"`
	Topic          string        `yaml:"topic"`
	GroupID        string        `yaml:"group_id"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file, then applies environment
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			// Expand environment variables
			data = []byte(os.ExpandEnv(string(data)))
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// applyEnv overrides fields from the process environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("DISCORD_BOT_TOKEN", &c.Discord.Token)
	str("DISCORD_GUILD_ID", &c.Discord.GuildID)
	str("VERIFY_CHANNEL_ID", &c.Discord.WelcomeChannelID)
	str("LEADERBOARD_CHANNEL_ID", &c.Discord.LeaderboardChannelID)
	str("WELCOME_MESSAGE", &c.Discord.WelcomeMessage)
	str("SHOPIFY_WEBHOOK_SECRET", &c.Auth.WebhookSecret)
	str("INTERNAL_SECRET", &c.Auth.InternalSecret)
	str("DATABASE_URL", &c.Postgres.URL)
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}

	if v, ok := lookup("XP_PER_ORDER"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing XP_PER_ORDER: %w", err)
		}
		c.Ledger.XPPerOrder = n
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing PORT: %w", err)
		}
		c.Server.Port = n
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}

	// Discord defaults
	if c.Discord.WelcomeMessage == "" {
		c.Discord.WelcomeMessage = DefaultWelcomeMessage
	}
	if c.Discord.RequestsPerSecond == 0 {
		c.Discord.RequestsPerSecond = 5
	}
	if c.Discord.Burst == 0 {
		c.Discord.Burst = 5
	}

	// Ledger defaults
	if c.Ledger.XPPerOrder == 0 {
		c.Ledger.XPPerOrder = 10
	}

	// Leaderboard defaults
	if c.Leaderboard.Title == "" {
		c.Leaderboard.Title = DefaultLeaderboardTitle
	}
	if c.Leaderboard.PublishSize == 0 {
		c.Leaderboard.PublishSize = 10
	}
	if c.Leaderboard.DefaultLimit == 0 {
		c.Leaderboard.DefaultLimit = 10
	}
	if c.Leaderboard.MaxLimit == 0 {
		c.Leaderboard.MaxLimit = 100
	}
	if c.Leaderboard.ResolveWorkers == 0 {
		c.Leaderboard.ResolveWorkers = 4
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 10
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 1
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.NameTTL == 0 {
		c.Redis.NameTTL = 1 * time.Hour
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "orders-paid"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "creator-xp"
	}
	if c.Kafka.ProcessTimeout == 0 {
		c.Kafka.ProcessTimeout = 10 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate reports configuration the process cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Discord.Token == "" {
		missing = append(missing, "discord.token (DISCORD_BOT_TOKEN)")
	}
	if c.Discord.WelcomeChannelID == "" {
		missing = append(missing, "discord.welcome_channel_id (VERIFY_CHANNEL_ID)")
	}
	if c.Auth.WebhookSecret == "" {
		missing = append(missing, "auth.webhook_secret (SHOPIFY_WEBHOOK_SECRET)")
	}
	if c.Auth.InternalSecret == "" {
		missing = append(missing, "auth.internal_secret (INTERNAL_SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingConfig, strings.Join(missing, ", "))
	}

	if c.Ledger.XPPerOrder <= 0 {
		return fmt.Errorf("ledger.xp_per_order must be positive, got %d", c.Ledger.XPPerOrder)
	}
	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
