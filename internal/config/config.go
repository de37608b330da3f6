// Package config loads the runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. AQUAHARVEST_PORT.
const Prefix = "AQUAHARVEST"

// Env mirrors the supported environment variables. Unset variables keep
// the tier defaults.
type Env struct {
	Tier  string `envconfig:"TIER"`
	Debug bool   `envconfig:"DEBUG"`

	Host string `envconfig:"HOST"`
	Port int    `envconfig:"PORT"`

	DBDriver   string `envconfig:"DB_DRIVER"`
	SQLitePath string `envconfig:"SQLITE_PATH"`
	PGHost     string `envconfig:"PG_HOST"`
	PGPort     int    `envconfig:"PG_PORT"`
	PGUser     string `envconfig:"PG_USER"`
	PGPassword string `envconfig:"PG_PASSWORD"`
	PGDB       string `envconfig:"PG_DB"`
	PGSSLMode  string `envconfig:"PG_SSLMODE"`

	CacheType     string `envconfig:"CACHE_TYPE"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       *int   `envconfig:"REDIS_DB"`

	BusType   string `envconfig:"BUS_TYPE"`
	NATSURL   string `envconfig:"NATS_URL"`
	NATSToken string `envconfig:"NATS_TOKEN"`

	LogLevel  string `envconfig:"LOG_LEVEL"`
	LogFormat string `envconfig:"LOG_FORMAT"`

	RateLimit      *int          `envconfig:"RATE_LIMIT"`
	RateWindow     time.Duration `envconfig:"RATE_WINDOW"`
	RegionCacheTTL time.Duration `envconfig:"REGION_CACHE_TTL"`
	AsyncWorker    *bool         `envconfig:"ASYNC_WORKER"`
}

// Load reads the environment and returns the effective configuration.
func Load() (*domain.Config, error) {
	var env Env
	if err := envconfig.Process(Prefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return Apply(env)
}

// Apply builds the configuration for the selected tier and overlays the
// variables that were set.
func Apply(env Env) (*domain.Config, error) {
	var cfg *domain.Config
	switch domain.Tier(strings.ToLower(env.Tier)) {
	case "", domain.TierCommunity:
		cfg = domain.DefaultConfig()
	case domain.TierPro:
		cfg = domain.ProConfig()
	default:
		return nil, fmt.Errorf("unsupported tier: %s", env.Tier)
	}

	setString(&cfg.Server.Host, env.Host)
	setInt(&cfg.Server.Port, env.Port)

	setString(&cfg.Repository.Driver, env.DBDriver)
	setString(&cfg.Repository.SQLitePath, env.SQLitePath)
	setString(&cfg.Repository.PostgresHost, env.PGHost)
	setInt(&cfg.Repository.PostgresPort, env.PGPort)
	setString(&cfg.Repository.PostgresUser, env.PGUser)
	setString(&cfg.Repository.PostgresPassword, env.PGPassword)
	setString(&cfg.Repository.PostgresDB, env.PGDB)
	setString(&cfg.Repository.PostgresSSLMode, env.PGSSLMode)

	setString(&cfg.Cache.Type, env.CacheType)
	setString(&cfg.Cache.RedisAddr, env.RedisAddr)
	setString(&cfg.Cache.RedisPassword, env.RedisPassword)
	if env.RedisDB != nil {
		cfg.Cache.RedisDB = *env.RedisDB
	}

	setString(&cfg.EventBus.Type, env.BusType)
	setString(&cfg.EventBus.NATSUrl, env.NATSURL)
	setString(&cfg.EventBus.NATSToken, env.NATSToken)

	setString(&cfg.Logging.Level, env.LogLevel)
	setString(&cfg.Logging.Format, env.LogFormat)
	if env.Debug {
		cfg.Logging.Level = "debug"
	}

	if env.RateLimit != nil {
		cfg.RateLimit.Requests = *env.RateLimit
	}
	if env.RateWindow > 0 {
		cfg.RateLimit.Window = env.RateWindow
	}
	if env.RegionCacheTTL > 0 {
		cfg.Regions.CacheTTL = env.RegionCacheTTL
	}
	if env.AsyncWorker != nil {
		cfg.AsyncWorker = *env.AsyncWorker
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
