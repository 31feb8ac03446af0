package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	AppBlobnet  = "blobnet"
	AppBlobnetd = "blobnetd"

	// EnvPrefix is shared by both binaries, e.g. BLOBNET_RETRIEVAL_DATA_RATE.
	EnvPrefix = "BLOBNET"
)

// configSearchPaths returns the paths to search for config files in order of precedence
// (later paths have higher priority in Viper)
func configSearchPaths(appName string) []string {
	paths := []string{}

	// System-wide (lowest priority)
	paths = append(paths, filepath.Join("/etc", appName))

	// User-specific
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName))
	}

	// Current directory (highest priority for files)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, cwd)
	}

	return paths
}

// UserConfigDir returns the user-specific config directory for the app
func UserConfigDir(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// newViper creates and configures a new Viper instance for the given app
func newViper(appName string) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range configSearchPaths(appName) {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v, DefaultBlobnetConfig())

	return v
}

// Load loads the configuration for the given app. An explicit cfgFile
// overrides the search paths; a missing config file is not an error.
func Load(appName, cfgFile string) (*BlobnetConfig, error) {
	v := newViper(appName)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults + env vars
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*BlobnetConfig, error) {
	var cfg BlobnetConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.DataDir = ExpandPath(cfg.Server.DataDir)
	cfg.Server.DownloadDir = ExpandPath(cfg.Server.DownloadDir)
	cfg.Storage.BlobDir = ExpandPath(cfg.Storage.BlobDir)
	cfg.Storage.DatabasePath = ExpandPath(cfg.Storage.DatabasePath)
	cfg.P2P.Identity.KeyPath = ExpandPath(cfg.P2P.Identity.KeyPath)
	cfg.Resolver.ClaimsFile = ExpandPath(cfg.Resolver.ClaimsFile)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the node cannot run with.
func Validate(cfg *BlobnetConfig) error {
	r := cfg.Retrieval
	if r.DataRate < 0 {
		return fmt.Errorf("retrieval.data_rate must not be negative, got %v", r.DataRate)
	}
	if r.SearchTimeout <= 0 || r.PeerSearchTimeout <= 0 || r.BlobTimeout <= 0 || r.DownloadTimeout <= 0 {
		return fmt.Errorf("retrieval timeouts must be positive")
	}
	if !r.DisableMaxKeyFee && r.MaxKeyFee.Currency == "" {
		return fmt.Errorf("retrieval.max_key_fee.currency is required unless disable_max_key_fee is set")
	}
	switch cfg.Storage.Compression {
	case "", "none", "gzip", "zstd":
	default:
		return fmt.Errorf("unknown storage.compression %q", cfg.Storage.Compression)
	}
	return nil
}

// setViperDefaults sets default values in Viper from a config struct
func setViperDefaults(v *viper.Viper, c *BlobnetConfig) {
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("log.output", c.Log.Output)
	v.SetDefault("log.file_path", c.Log.FilePath)
	v.SetDefault("log.max_size_mb", c.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", c.Log.MaxBackups)
	v.SetDefault("log.max_age_days", c.Log.MaxAgeDays)
	v.SetDefault("log.enable_caller", c.Log.EnableCaller)
	v.SetDefault("log.no_color", c.Log.NoColor)
	v.SetDefault("log.redact_fields", c.Log.RedactFields)
	v.SetDefault("server.data_dir", c.Server.DataDir)
	v.SetDefault("server.download_dir", c.Server.DownloadDir)
	v.SetDefault("server.pid_file", c.Server.PIDFile)
	// P2P defaults
	v.SetDefault("p2p.identity.key_path", c.P2P.Identity.KeyPath)
	v.SetDefault("p2p.listen_addresses", c.P2P.ListenAddresses)
	v.SetDefault("p2p.connection_manager.low_watermark", c.P2P.ConnManager.LowWatermark)
	v.SetDefault("p2p.connection_manager.high_watermark", c.P2P.ConnManager.HighWatermark)
	v.SetDefault("p2p.connection_manager.grace_period", c.P2P.ConnManager.GracePeriod)
	v.SetDefault("p2p.bootstrap.peers", c.P2P.Bootstrap.Peers)
	v.SetDefault("p2p.bootstrap.timeout", c.P2P.Bootstrap.Timeout)
	v.SetDefault("p2p.dht.mode", c.P2P.DHT.Mode)
	v.SetDefault("p2p.dht.reannounce_interval", c.P2P.DHT.ReannounceInterval)
	v.SetDefault("p2p.use_upnp", c.P2P.UseUPnP)
	v.SetDefault("p2p.mdns", c.P2P.MDNS)
	v.SetDefault("p2p.fetch_rate", c.P2P.FetchRate)
	v.SetDefault("p2p.fetch_burst", c.P2P.FetchBurst)
	// Retrieval defaults
	v.SetDefault("retrieval.search_timeout", c.Retrieval.SearchTimeout)
	v.SetDefault("retrieval.peer_search_timeout", c.Retrieval.PeerSearchTimeout)
	v.SetDefault("retrieval.blob_timeout", c.Retrieval.BlobTimeout)
	v.SetDefault("retrieval.download_timeout", c.Retrieval.DownloadTimeout)
	v.SetDefault("retrieval.data_rate", c.Retrieval.DataRate)
	v.SetDefault("retrieval.payment_policy_generous", c.Retrieval.PaymentPolicyGenerous)
	v.SetDefault("retrieval.max_key_fee.amount", c.Retrieval.MaxKeyFee.Amount)
	v.SetDefault("retrieval.max_key_fee.currency", c.Retrieval.MaxKeyFee.Currency)
	v.SetDefault("retrieval.disable_max_key_fee", c.Retrieval.DisableMaxKeyFee)
	v.SetDefault("retrieval.workers", c.Retrieval.Workers)
	v.SetDefault("retrieval.piece_retries", c.Retrieval.PieceRetries)
	// Storage defaults
	v.SetDefault("storage.blob_dir", c.Storage.BlobDir)
	v.SetDefault("storage.compression", c.Storage.Compression)
	v.SetDefault("storage.compression_level", c.Storage.CompressionLevel)
	v.SetDefault("storage.database_path", c.Storage.DatabasePath)
	v.SetDefault("exchange.rates", c.Exchange.Rates)
	v.SetDefault("resolver.claims_file", c.Resolver.ClaimsFile)
	v.SetDefault("resolver.cache_size", c.Resolver.CacheSize)
	v.SetDefault("resolver.cache_ttl", c.Resolver.CacheTTL)
	v.SetDefault("metrics.enabled", c.Metrics.Enabled)
	v.SetDefault("metrics.listen_addr", c.Metrics.ListenAddr)
	v.SetDefault("analytics.enabled", c.Analytics.Enabled)
	v.SetDefault("analytics.event_log_path", c.Analytics.EventLogPath)
}

// ConfigFileUsed returns the config file path that was loaded, if any
func ConfigFileUsed(appName string) string {
	v := newViper(appName)
	_ = v.ReadInConfig()
	return v.ConfigFileUsed()
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
