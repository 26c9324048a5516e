package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) []string
		wantErr bool
		assert  func(t *testing.T, cfg Config)
	}{
		{
			name:  "returns defaults when no overrides",
			setup: func(t *testing.T) []string { return nil },
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 8080, cfg.Server.Listen.Port)
				require.Equal(t, "memory", cfg.Server.Store.Backend)
				require.Equal(t, 24, cfg.Cache.ExpiryHours)
				require.Equal(t, "https://api.talentprotocol.com", cfg.Talent.BaseURL)
				require.Equal(t, "farcaster", cfg.Talent.AccountSource)
				require.Equal(t, 10, cfg.Neynar.SearchLimit)
			},
		},
		{
			name: "merges file overrides",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.yaml")
				contents := "server:\n  listen:\n    port: 9090\ncache:\n  expiryHours: 6\n"
				require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9090, cfg.Server.Listen.Port)
				require.Equal(t, 6, cfg.Cache.ExpiryHours)
			},
		},
		{
			name: "accepts json files",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.json")
				contents := `{"server": {"listen": {"port": 9092}}}`
				require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9092, cfg.Server.Listen.Port)
			},
		},
		{
			name: "accepts toml files",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.toml")
				contents := "[server.listen]\nport = 9093\n"
				require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9093, cfg.Server.Listen.Port)
			},
		},
		{
			name: "prefers env overrides",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.yaml")
				require.NoError(t, os.WriteFile(path, []byte("server:\n  listen:\n    port: 9090\n"), 0o600))
				t.Setenv("CASTLENS_SERVER__LISTEN__PORT", "9091")
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9091, cfg.Server.Listen.Port)
			},
		},
		{
			name: "maps canonical env keys",
			setup: func(t *testing.T) []string {
				t.Setenv("CASTLENS_TALENT__API_KEY", "talent-secret")
				t.Setenv("CASTLENS_NEYNAR__APIKEY", "neynar-secret")
				t.Setenv("CASTLENS_CACHE__EXPIRYHOURS", "12")
				return nil
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "talent-secret", cfg.Talent.APIKey)
				require.Equal(t, "neynar-secret", cfg.Neynar.APIKey)
				require.Equal(t, 12, cfg.Cache.ExpiryHours)
			},
		},
		{
			name: "reads store block",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.yaml")
				contents := "server:\n  store:\n    backend: redis\n    redis:\n      address: localhost:6379\n"
				require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "redis", cfg.Server.Store.Backend)
				require.Equal(t, "localhost:6379", cfg.Server.Store.Redis.Address)
			},
		},
		{
			name: "fails when file missing",
			setup: func(t *testing.T) []string {
				return []string{filepath.Join(t.TempDir(), "absent.yaml")}
			},
			wantErr: true,
		},
		{
			name: "fails on unsupported extension",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.ini")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
				return []string{path}
			},
			wantErr: true,
		},
		{
			name: "fails validation on bad backend",
			setup: func(t *testing.T) []string {
				t.Setenv("CASTLENS_SERVER__STORE__BACKEND", "dynamo")
				return nil
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := tc.setup(t)
			loader := NewLoader("CASTLENS", files...)
			cfg, err := loader.Load(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.assert != nil {
				tc.assert(t, cfg)
			}
		})
	}
}
