package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ==================== Types Tests ====================

func TestDefaultBlobnetConfig(t *testing.T) {
	cfg := DefaultBlobnetConfig()

	if cfg == nil {
		t.Fatal("DefaultBlobnetConfig returned nil")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %q", cfg.Log.Level)
	}
	if len(cfg.Log.RedactFields) == 0 {
		t.Error("expected redact fields to have default values")
	}

	r := cfg.Retrieval
	if r.SearchTimeout != 5*time.Second {
		t.Errorf("expected search timeout 5s, got %v", r.SearchTimeout)
	}
	if r.PeerSearchTimeout != 3*time.Second {
		t.Errorf("expected peer search timeout 3s, got %v", r.PeerSearchTimeout)
	}
	if r.BlobTimeout != 3*time.Second {
		t.Errorf("expected blob timeout 3s, got %v", r.BlobTimeout)
	}
	if r.DownloadTimeout != 180*time.Second {
		t.Errorf("expected download timeout 180s, got %v", r.DownloadTimeout)
	}
	if r.DataRate != 0.0001 {
		t.Errorf("expected data rate 0.0001, got %v", r.DataRate)
	}
	if r.PaymentPolicyGenerous {
		t.Error("expected payment policy to be non-generous")
	}
	if r.MaxKeyFee.Currency != "USD" || r.MaxKeyFee.Amount != 50 {
		t.Errorf("unexpected max key fee %+v", r.MaxKeyFee)
	}

	if cfg.Storage.Compression != "zstd" {
		t.Errorf("expected zstd compression, got %q", cfg.Storage.Compression)
	}
	if len(cfg.P2P.ListenAddresses) != 2 {
		t.Errorf("expected 2 listen addresses, got %d", len(cfg.P2P.ListenAddresses))
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestBlobnetConfig_DerivedPaths(t *testing.T) {
	cfg := DefaultBlobnetConfig()
	cfg.Server.DataDir = "/data"

	if got := cfg.BlobDir(); got != "/data/blobfiles" {
		t.Errorf("unexpected blob dir %q", got)
	}
	if got := cfg.DatabasePath(); got != "/data/blobnet.db" {
		t.Errorf("unexpected database path %q", got)
	}
	if got := cfg.IdentityKeyPath(); got != "/data/identity.pem" {
		t.Errorf("unexpected identity path %q", got)
	}
	if got := cfg.DownloadDir(); got != "/data/downloads" {
		t.Errorf("unexpected download dir %q", got)
	}

	cfg.Storage.BlobDir = "/blobs"
	if got := cfg.BlobDir(); got != "/blobs" {
		t.Errorf("explicit blob dir should win, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BlobnetConfig)
		wantErr bool
	}{
		{"defaults", func(*BlobnetConfig) {}, false},
		{"negative rate", func(c *BlobnetConfig) { c.Retrieval.DataRate = -1 }, true},
		{"zero timeout", func(c *BlobnetConfig) { c.Retrieval.BlobTimeout = 0 }, true},
		{"missing fee currency", func(c *BlobnetConfig) { c.Retrieval.MaxKeyFee.Currency = "" }, true},
		{"fee disabled", func(c *BlobnetConfig) {
			c.Retrieval.MaxKeyFee.Currency = ""
			c.Retrieval.DisableMaxKeyFee = true
		}, false},
		{"bad compression", func(c *BlobnetConfig) { c.Storage.Compression = "lz4" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBlobnetConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ==================== Loader Tests ====================

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  data_dir: /srv/blobnet
retrieval:
  data_rate: 0.5
  payment_policy_generous: true
  download_timeout: 30s
exchange:
  rates:
    USD: 12.5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(AppBlobnetd, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.DataDir != "/srv/blobnet" {
		t.Errorf("expected data dir from file, got %q", cfg.Server.DataDir)
	}
	if cfg.Retrieval.DataRate != 0.5 {
		t.Errorf("expected data rate 0.5, got %v", cfg.Retrieval.DataRate)
	}
	if !cfg.Retrieval.PaymentPolicyGenerous {
		t.Error("expected generous policy from file")
	}
	if cfg.Retrieval.DownloadTimeout != 30*time.Second {
		t.Errorf("expected download timeout 30s, got %v", cfg.Retrieval.DownloadTimeout)
	}
	if cfg.Retrieval.BlobTimeout != 3*time.Second {
		t.Errorf("unset keys should keep defaults, got %v", cfg.Retrieval.BlobTimeout)
	}

	var found bool
	for k, v := range cfg.Exchange.Rates {
		if strings.EqualFold(k, "usd") && v == 12.5 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected USD rate from file, got %v", cfg.Exchange.Rates)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  data_rate: 0.5\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("BLOBNET_RETRIEVAL_DATA_RATE", "0.25")

	cfg, err := Load(AppBlobnet, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Retrieval.DataRate != 0.25 {
		t.Errorf("expected env override 0.25, got %v", cfg.Retrieval.DataRate)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(AppBlobnet, path); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  data_rate: -3\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(AppBlobnet, path); err == nil {
		t.Error("expected validation error")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/data", filepath.Join(home, "data")},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ==================== Generator Tests ====================

func TestGenerateConfig(t *testing.T) {
	dir := t.TempDir()

	path, err := GenerateConfig(dir)
	if err != nil {
		t.Fatalf("GenerateConfig failed: %v", err)
	}

	cfg, err := Load(AppBlobnet, path)
	if err != nil {
		t.Fatalf("generated config should load: %v", err)
	}
	if cfg.Retrieval.DownloadTimeout != 180*time.Second {
		t.Errorf("generated config lost download timeout: %v", cfg.Retrieval.DownloadTimeout)
	}

	if _, err := GenerateConfig(dir); err == nil {
		t.Error("expected error when config already exists")
	}
}

// ==================== Watcher Tests ====================

func TestConfigWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  data_rate: 0.1\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cw, err := NewConfigWatcher(AppBlobnetd, path)
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}
	if cw.CurrentConfig().Retrieval.DataRate != 0.1 {
		t.Errorf("unexpected initial rate %v", cw.CurrentConfig().Retrieval.DataRate)
	}

	var got *BlobnetConfig
	cw.OnChange(func(cfg *BlobnetConfig) { got = cfg })

	if err := os.WriteFile(path, []byte("retrieval:\n  data_rate: 0.2\n  payment_policy_generous: true\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if err := cw.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if got == nil {
		t.Fatal("callback not invoked")
	}
	if got.Retrieval.DataRate != 0.2 || !got.Retrieval.PaymentPolicyGenerous {
		t.Errorf("unexpected reloaded retrieval config %+v", got.Retrieval)
	}
	if cw.CurrentConfig() != got {
		t.Error("CurrentConfig should return the reloaded config")
	}
}

func TestConfigWatcher_ReloadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  data_rate: 0.1\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cw, err := NewConfigWatcher(AppBlobnetd, path)
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}

	var called bool
	var reloadErr error
	cw.OnChange(func(*BlobnetConfig) { called = true })
	cw.OnError(func(err error) { reloadErr = err })

	if err := os.WriteFile(path, []byte("retrieval:\n  data_rate: -1\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if err := cw.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if called {
		t.Error("invalid config should not reach callbacks")
	}
	if reloadErr == nil {
		t.Error("expected error callback")
	}
	if cw.CurrentConfig().Retrieval.DataRate != 0.1 {
		t.Error("invalid reload should keep previous config")
	}
}

func TestNewConfigWatcher_MissingFile(t *testing.T) {
	if _, err := NewConfigWatcher(AppBlobnetd, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
