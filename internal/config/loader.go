package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting
// env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first
// contract before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot using the documented precedence
// rules and validates it before handing it to the bootstrap.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		parser, err := parserForFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"server.store.redis.tls.cafile":      "server.store.redis.tls.caFile",
			"server.store.postgres.sslinsecure":  "server.store.postgres.sslInsecure",
			"server.store.postgres.maxopenconns": "server.store.postgres.maxOpenConns",
			"server.store.postgres.maxidleconns": "server.store.postgres.maxIdleConns",
			"cache.expiryhours":                  "cache.expiryHours",
			"talent.baseurl":                     "talent.baseURL",
			"talent.apikey":                      "talent.apiKey",
			"talent.accountsource":               "talent.accountSource",
			"neynar.baseurl":                     "neynar.baseURL",
			"neynar.apikey":                      "neynar.apiKey",
			"neynar.searchlimit":                 "neynar.searchLimit",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path
			// (SERVER__LISTEN__PORT -> server.listen.port).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			// Single underscores are removed so API_KEY collapses into
			// apikey when callers choose not to use double underscores
			// for object nesting.
			key = strings.ReplaceAll(key, "_", "")
			lower = strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			return lower
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parserForFile picks a koanf parser from the file extension.
func parserForFile(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml", ".tml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported file format: %s", path)
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap
// provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":  cfg.Server.Logging.Level,
				"format": cfg.Server.Logging.Format,
			},
			"store": map[string]any{
				"backend": cfg.Server.Store.Backend,
				"redis": map[string]any{
					"address":  cfg.Server.Store.Redis.Address,
					"username": cfg.Server.Store.Redis.Username,
					"password": cfg.Server.Store.Redis.Password,
					"db":       cfg.Server.Store.Redis.DB,
					"tls": map[string]any{
						"enabled": cfg.Server.Store.Redis.TLS.Enabled,
						"caFile":  cfg.Server.Store.Redis.TLS.CAFile,
					},
				},
				"postgres": map[string]any{
					"host":         cfg.Server.Store.Postgres.Host,
					"port":         cfg.Server.Store.Postgres.Port,
					"user":         cfg.Server.Store.Postgres.User,
					"password":     cfg.Server.Store.Postgres.Password,
					"database":     cfg.Server.Store.Postgres.Database,
					"sslInsecure":  cfg.Server.Store.Postgres.SSLInsecure,
					"maxOpenConns": cfg.Server.Store.Postgres.MaxOpenConns,
					"maxIdleConns": cfg.Server.Store.Postgres.MaxIdleConns,
				},
			},
		},
		"cache": map[string]any{
			"expiryHours": cfg.Cache.ExpiryHours,
		},
		"talent": map[string]any{
			"baseURL":       cfg.Talent.BaseURL,
			"apiKey":        cfg.Talent.APIKey,
			"accountSource": cfg.Talent.AccountSource,
		},
		"neynar": map[string]any{
			"baseURL":     cfg.Neynar.BaseURL,
			"apiKey":      cfg.Neynar.APIKey,
			"searchLimit": cfg.Neynar.SearchLimit,
		},
	}
}
