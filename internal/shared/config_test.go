package shared

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./plsync.db" {
			t.Errorf("expected database path ./plsync.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 8888 {
			t.Errorf("expected server port 8888, got %d", config.Server.Port)
		}
		if config.Sync.Market != "US" {
			t.Errorf("expected market US, got %s", config.Sync.Market)
		}
		if config.Sync.OnError != PolicyAbort {
			t.Errorf("expected on_error %q, got %q", PolicyAbort, config.Sync.OnError)
		}
		if config.Catalog.Timeout.Duration != 10*time.Second {
			t.Errorf("expected catalog timeout 10s, got %v", config.Catalog.Timeout)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[sync]
paths = "C:\\Music\\Road Trip.m3u; /home/me/chill.m3u8"
market = "GB"
on_error = "continue"
concurrency = 4

[catalog]
timeout = "3s"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Sync.Market != "GB" {
			t.Errorf("expected market GB, got %s", config.Sync.Market)
		}
		if config.Sync.Concurrency != 4 {
			t.Errorf("expected concurrency 4, got %d", config.Sync.Concurrency)
		}
		if config.Catalog.Timeout.Duration != 3*time.Second {
			t.Errorf("expected timeout 3s, got %v", config.Catalog.Timeout)
		}
		if config.Sync.PageSize != 50 {
			t.Errorf("missing keys should keep defaults, got page_size %d", config.Sync.PageSize)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		want := []string{`C:\Music\Road Trip.m3u`, "/home/me/chill.m3u8"}
		if got := config.PlaylistPaths(); !reflect.DeepEqual(got, want) {
			t.Errorf("PlaylistPaths() = %q, want %q", got, want)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		if err := config.Credentials.Spotify.Update(&oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       expiry,
		}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("SaveConfig() error = %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil {
			t.Fatal("expected token to be persisted")
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
		if loaded.Catalog.Timeout.Duration != 10*time.Second {
			t.Errorf("duration should round trip, got %v", loaded.Catalog.Timeout)
		}
	})

	t.Run("Update keeps refresh token when the new token omits it", func(t *testing.T) {
		spotify := SpotifyConfig{RefreshToken: "keep"}
		if err := spotify.Update(&oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if spotify.RefreshToken != "keep" {
			t.Errorf("expected refresh token to be kept, got %q", spotify.RefreshToken)
		}
		if err := spotify.Update(nil); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Token is nil without credentials", func(t *testing.T) {
		if tok := (SpotifyConfig{}).Token(); tok != nil {
			t.Errorf("expected nil token, got %+v", tok)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "empty market", modify: func(c *Config) { c.Sync.Market = " " }},
		{name: "unknown policy", modify: func(c *Config) { c.Sync.OnError = "retry" }},
		{name: "zero concurrency", modify: func(c *Config) { c.Sync.Concurrency = 0 }},
		{name: "page size too large", modify: func(c *Config) { c.Sync.PageSize = 51 }},
		{name: "negative rate limit", modify: func(c *Config) { c.Sync.RateLimit = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSplitPaths(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "a.m3u", want: []string{"a.m3u"}},
		{in: "a.m3u;b.m3u8", want: []string{"a.m3u", "b.m3u8"}},
		{in: " a.m3u , b.m3u ;; ", want: []string{"a.m3u", "b.m3u"}},
	}

	for _, tt := range tests {
		if got := SplitPaths(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitPaths(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
