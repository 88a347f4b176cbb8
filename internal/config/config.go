// Package config loads the relay configuration from flags, the environment,
// an optional config file and a .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	BotToken      string `mapstructure:"bot_token"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	GroupID       int64  `mapstructure:"group_id"`
	OwnerID       int64  `mapstructure:"owner_id"`
	DBDSN         string `mapstructure:"db_dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	Addr          string `mapstructure:"addr"`

	Admin struct {
		Username     string `mapstructure:"username"`
		PasswordHash string `mapstructure:"password_hash"`
		JWTSecret    string `mapstructure:"jwt_secret"`
	} `mapstructure:"admin"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Relay struct {
		Backoff      time.Duration `mapstructure:"backoff"`
		RateLimitCap time.Duration `mapstructure:"rate_limit_cap"`
	} `mapstructure:"relay"`

	Album struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
		StablePolls  int           `mapstructure:"stable_polls"`
		MaxWait      time.Duration `mapstructure:"max_wait"`
	} `mapstructure:"album"`

	Edit struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"edit"`

	API struct {
		RPS float64 `mapstructure:"rps"`
	} `mapstructure:"api"`
}

// SetDefaults registers every key on v, so AutomaticEnv can resolve nested
// keys (ADMIN_JWT_SECRET, RELAY_BACKOFF, ...) during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bot_token", "")
	v.SetDefault("webhook_url", "")
	v.SetDefault("webhook_secret", "")
	v.SetDefault("group_id", 0)
	v.SetDefault("owner_id", 0)
	v.SetDefault("db_dsn", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("addr", ":9527")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("relay.backoff", time.Second)
	v.SetDefault("relay.rate_limit_cap", 2*time.Minute)
	v.SetDefault("album.poll_interval", 500*time.Millisecond)
	v.SetDefault("album.stable_polls", 3)
	v.SetDefault("album.max_wait", 30*time.Second)
	v.SetDefault("edit.timeout", 5*time.Minute)
	v.SetDefault("api.rps", 25)
}

// New returns a viper instance that reads plain environment names
// (BOT_TOKEN, GROUP_ID, ADMIN_JWT_SECRET).
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads envFile (if it exists) into the environment, then configFile
// (if set), and validates the result.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrMissing is wrapped by Validate for every absent required key.
var ErrMissing = errors.New("missing required config")

func (c *Config) Validate() error {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "bot_token")
	}
	if c.GroupID == 0 {
		missing = append(missing, "group_id")
	}
	if c.OwnerID == 0 {
		missing = append(missing, "owner_id")
	}
	if c.DBDSN == "" {
		missing = append(missing, "db_dsn")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// AdminEnabled reports whether the admin API and monitor can be served.
func (c *Config) AdminEnabled() bool {
	return c.Admin.PasswordHash != "" && c.Admin.JWTSecret != ""
}
