package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	valkey "github.com/valkey-io/valkey-go"

	"github.com/castlens/castlens/internal/profile"
)

const redisKeyPrefix = "talent_scores:"

type RedisTLSConfig struct {
	Enabled bool
	CAFile  string
}

type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      RedisTLSConfig
}

type redisStore struct {
	client valkey.Client
}

// NewRedis connects a valkey-backed store. Records are written without
// a server-side TTL: expiry is a read-side freshness decision, the row
// itself persists until overwritten.
func NewRedis(cfg RedisConfig) (Store, error) {
	if cfg.Address == "" {
		return nil, errors.New("store: redis address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("store: read redis ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("store: redis ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("store: redis client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}

	return &redisStore{client: client}, nil
}

func (s *redisStore) Get(ctx context.Context, fid string) (Entry, bool, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(redisKeyPrefix+fid).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("store: redis get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return Entry{}, false, fmt.Errorf("store: redis get bytes: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("store: redis unmarshal: %w", err)
	}
	return entry, true, nil
}

func (s *redisStore) Upsert(ctx context.Context, fid string, p profile.Profile, refreshedAt time.Time) (Entry, error) {
	entry := Entry{
		FID:           fid,
		Profile:       p,
		LastRefreshed: refreshedAt.UTC(),
		CreatedAt:     refreshedAt.UTC(),
	}
	// Read-modify-write to keep the original CreatedAt. Concurrent
	// writers to the same fid race; last write wins.
	if existing, ok, err := s.Get(ctx, fid); err == nil && ok {
		entry.CreatedAt = existing.CreatedAt
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("store: redis marshal: %w", err)
	}
	cmd := s.client.B().Set().Key(redisKeyPrefix + fid).Value(string(payload)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return Entry{}, fmt.Errorf("store: redis set: %w", err)
	}
	return entry, nil
}

func (s *redisStore) Close(context.Context) error {
	s.client.Close()
	return nil
}
