// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Log       LogConfig       `mapstructure:"log"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Games     GamesConfig     `mapstructure:"games"`
}

// BotConfig holds Telegram bot configuration. An empty token disables Telegram.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DiscordConfig holds Discord bot configuration. An empty token disables Discord.
type DiscordConfig struct {
	Token string `mapstructure:"token"`
	// GuildID scopes slash commands to one guild; empty registers them globally.
	GuildID string `mapstructure:"guild_id"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// WalletConfig holds wallet account configuration.
type WalletConfig struct {
	InitialBalance int64 `mapstructure:"initial_balance"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	RPS RPSConfig `mapstructure:"rps"`
}

// RPSConfig holds rock-paper-scissors wager configuration.
type RPSConfig struct {
	RecruitSeconds       int           `mapstructure:"recruit_seconds"`
	BettingSeconds       int           `mapstructure:"betting_seconds"`
	MinStake             int64         `mapstructure:"min_stake"`
	MaxStake             int64         `mapstructure:"max_stake"`
	HouseUserID          int64         `mapstructure:"house_user_id"`
	HouseName            string        `mapstructure:"house_name"`
	HouseInitialBalance  int64         `mapstructure:"house_initial_balance"`
	CreditMaxAttempts    int           `mapstructure:"credit_max_attempts"`
	CreditInitialBackoff time.Duration `mapstructure:"credit_initial_backoff"`
	CreditMaxBackoff     time.Duration `mapstructure:"credit_max_backoff"`
	SettledRetention     time.Duration `mapstructure:"settled_retention"`
	DisplayInterval      time.Duration `mapstructure:"display_interval"`
}

// RecruitWindow returns the recruit phase duration.
func (c *RPSConfig) RecruitWindow() time.Duration {
	return time.Duration(c.RecruitSeconds) * time.Second
}

// BettingWindow returns the betting phase duration.
func (c *RPSConfig) BettingWindow() time.Duration {
	return time.Duration(c.BettingSeconds) * time.Second
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DISCORD_TOKEN, DATABASE_HOST, GAMES_RPS_RECRUIT_SECONDS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "wagerbot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "wagerbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("log.level", "info")

	v.SetDefault("wallet.initial_balance", 1000)

	v.SetDefault("games.rps.recruit_seconds", 30)
	v.SetDefault("games.rps.betting_seconds", 30)
	v.SetDefault("games.rps.min_stake", 1)
	v.SetDefault("games.rps.max_stake", 0)
	v.SetDefault("games.rps.house_user_id", 0)
	v.SetDefault("games.rps.house_name", "house")
	v.SetDefault("games.rps.house_initial_balance", 100000)
	v.SetDefault("games.rps.credit_max_attempts", 5)
	v.SetDefault("games.rps.credit_initial_backoff", "200ms")
	v.SetDefault("games.rps.credit_max_backoff", "5s")
	v.SetDefault("games.rps.settled_retention", "10m")
	v.SetDefault("games.rps.display_interval", "1s")
}

// Validate checks for settings the bot cannot start with.
func (c *Config) Validate() error {
	if c.Bot.Token == "" && c.Discord.Token == "" {
		return errors.New("no chat platform configured: set bot.token or discord.token")
	}
	if c.Games.RPS.RecruitSeconds <= 0 || c.Games.RPS.BettingSeconds <= 0 {
		return errors.New("games.rps recruit_seconds and betting_seconds must be positive")
	}
	if c.Games.RPS.MinStake < 1 {
		return errors.New("games.rps.min_stake must be at least 1")
	}
	if c.Games.RPS.MaxStake != 0 && c.Games.RPS.MaxStake < c.Games.RPS.MinStake {
		return errors.New("games.rps.max_stake must be 0 or at least min_stake")
	}
	if c.Wallet.InitialBalance < 0 {
		return errors.New("wallet.initial_balance must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return nil
}

// LogLevel returns the configured zerolog level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
// An empty whitelist allows every chat.
func (c *Config) IsChatAllowed(chatID int64) bool {
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
