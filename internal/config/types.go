package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every option the service reads at boot. API keys and
// store credentials arrive through the same precedence chain as
// everything else (env > file > defaults); nothing reads ambient
// globals after construction.
type Config struct {
	Server Server `koanf:"server"`
	Cache  Cache  `koanf:"cache"`
	Talent Talent `koanf:"talent"`
	Neynar Neynar `koanf:"neynar"`
}

// Server collects the bootstrap knobs for the HTTP listener, logging,
// and the record store backend.
type Server struct {
	Listen  Listen  `koanf:"listen"`
	Logging Logging `koanf:"logging"`
	Store   Store   `koanf:"store"`
}

// Listen instructs the HTTP listener about bind address and port.
type Listen struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// Logging expresses log level and output format.
type Logging struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Store selects and configures the keyed record store backend.
type Store struct {
	Backend  string        `koanf:"backend"`
	Redis    RedisStore    `koanf:"redis"`
	Postgres PostgresStore `koanf:"postgres"`
}

type RedisStore struct {
	Address  string        `koanf:"address"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TLS      RedisStoreTLS `koanf:"tls"`
}

type RedisStoreTLS struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

type PostgresStore struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	Database     string `koanf:"database"`
	SSLInsecure  bool   `koanf:"sslInsecure"`
	MaxOpenConns int    `koanf:"maxOpenConns"`
	MaxIdleConns int    `koanf:"maxIdleConns"`
}

// Cache controls the read-side freshness window. Rows are never
// evicted; ExpiryHours only decides when a read stops trusting them.
type Cache struct {
	ExpiryHours int `koanf:"expiryHours"`
}

// Expiry returns the freshness window as a duration.
func (c Cache) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

// Talent configures the reputation API client.
type Talent struct {
	BaseURL       string `koanf:"baseURL"`
	APIKey        string `koanf:"apiKey"`
	AccountSource string `koanf:"accountSource"`
}

// Neynar configures the user directory client.
type Neynar struct {
	BaseURL     string `koanf:"baseURL"`
	APIKey      string `koanf:"apiKey"`
	SearchLimit int    `koanf:"searchLimit"`
}

// Validate enforces invariants that keep the runtime predictable before
// serving traffic.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}
	if c.Cache.ExpiryHours <= 0 {
		return fmt.Errorf("config: cache.expiryHours invalid: %d", c.Cache.ExpiryHours)
	}
	if c.Neynar.SearchLimit <= 0 {
		return fmt.Errorf("config: neynar.searchLimit invalid: %d", c.Neynar.SearchLimit)
	}
	if strings.TrimSpace(c.Talent.BaseURL) == "" {
		return errors.New("config: talent.baseURL required")
	}
	if strings.TrimSpace(c.Neynar.BaseURL) == "" {
		return errors.New("config: neynar.baseURL required")
	}
	backend := strings.TrimSpace(strings.ToLower(c.Server.Store.Backend))
	switch backend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Server.Store.Redis.Address) == "" {
			return errors.New("config: server.store.redis.address required for redis backend")
		}
	case "postgres":
		if strings.TrimSpace(c.Server.Store.Postgres.Host) == "" {
			return errors.New("config: server.store.postgres.host required for postgres backend")
		}
	default:
		return fmt.Errorf("config: server.store.backend unsupported: %s", c.Server.Store.Backend)
	}
	return nil
}

// DefaultConfig returns the baseline values the service boots with when
// neither file nor environment override them.
func DefaultConfig() Config {
	return Config{
		Server: Server{
			Listen: Listen{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: Logging{
				Level:  "info",
				Format: "json",
			},
			Store: Store{
				Backend: "memory",
			},
		},
		Cache: Cache{
			ExpiryHours: 24,
		},
		Talent: Talent{
			BaseURL:       "https://api.talentprotocol.com",
			AccountSource: "farcaster",
		},
		Neynar: Neynar{
			BaseURL:     "https://api.neynar.com",
			SearchLimit: 10,
		},
	}
}
