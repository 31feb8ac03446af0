package config

import (
	"path/filepath"
	"time"
)

// LogConfig holds logging configuration shared by blobnet and blobnetd
type LogConfig struct {
	Level        string   `mapstructure:"level" yaml:"level"`                 // debug, info, warn, error
	Format       string   `mapstructure:"format" yaml:"format"`               // text, json, pretty
	Output       string   `mapstructure:"output" yaml:"output"`               // stdout, stderr, or file path
	FilePath     string   `mapstructure:"file_path" yaml:"file_path"`         // path to log file (in addition to output)
	MaxSizeMB    int      `mapstructure:"max_size_mb" yaml:"max_size_mb"`     // max size in MB before rotation
	MaxBackups   int      `mapstructure:"max_backups" yaml:"max_backups"`     // max number of old log files to keep
	MaxAgeDays   int      `mapstructure:"max_age_days" yaml:"max_age_days"`   // max days to retain old log files
	EnableCaller bool     `mapstructure:"enable_caller" yaml:"enable_caller"` // include source file/line in logs
	NoColor      bool     `mapstructure:"no_color" yaml:"no_color"`           // disable colored output (pretty format only)
	RedactFields []string `mapstructure:"redact_fields" yaml:"redact_fields"` // field names to redact from logs
}

// ServerConfig holds local node paths
type ServerConfig struct {
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	DownloadDir string `mapstructure:"download_dir" yaml:"download_dir"`
	PIDFile     string `mapstructure:"pid_file" yaml:"pid_file"`
}

// P2PConfig holds P2P networking configuration
type P2PConfig struct {
	// Identity configuration
	Identity P2PIdentityConfig `mapstructure:"identity" yaml:"identity"`

	// Listen addresses in multiaddr format
	// Defaults: ["/ip4/0.0.0.0/tcp/3333", "/ip4/0.0.0.0/udp/3333/quic-v1"]
	ListenAddresses []string `mapstructure:"listen_addresses" yaml:"listen_addresses"`

	// Connection manager settings
	ConnManager ConnManagerConfig `mapstructure:"connection_manager" yaml:"connection_manager"`

	// Bootstrap node configuration
	Bootstrap BootstrapConfig `mapstructure:"bootstrap" yaml:"bootstrap"`

	// DHT configuration
	DHT DHTConfig `mapstructure:"dht" yaml:"dht"`

	// UseUPnP asks the host to map its listen ports on the gateway.
	UseUPnP bool `mapstructure:"use_upnp" yaml:"use_upnp"`

	// MDNS discovers peers on the local network.
	MDNS bool `mapstructure:"mdns" yaml:"mdns"`

	// FetchRate limits outbound blob requests per second; zero disables the limit.
	FetchRate float64 `mapstructure:"fetch_rate" yaml:"fetch_rate"`

	// FetchBurst is the burst size for FetchRate.
	FetchBurst int `mapstructure:"fetch_burst" yaml:"fetch_burst"`
}

// P2PIdentityConfig holds node P2P identity configuration
type P2PIdentityConfig struct {
	// KeyPath is the path to the PEM-encoded Ed25519 private key file.
	// If empty, defaults to the data directory + "/identity.pem"
	KeyPath string `mapstructure:"key_path" yaml:"key_path"`
}

// ConnManagerConfig holds connection manager settings
type ConnManagerConfig struct {
	LowWatermark  int           `mapstructure:"low_watermark" yaml:"low_watermark"`
	HighWatermark int           `mapstructure:"high_watermark" yaml:"high_watermark"`
	GracePeriod   time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
}

// BootstrapConfig holds bootstrap node configuration
type BootstrapConfig struct {
	// Peers is a list of bootstrap peer multiaddrs including /p2p/<id>
	Peers []string `mapstructure:"peers" yaml:"peers"`

	// Timeout bounds each bootstrap dial
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DHTConfig holds Kademlia DHT configuration
type DHTConfig struct {
	// Mode is one of "auto", "server", "client"
	Mode string `mapstructure:"mode" yaml:"mode"`

	// ReannounceInterval is how often held blobs are re-announced as provided
	ReannounceInterval time.Duration `mapstructure:"reannounce_interval" yaml:"reannounce_interval"`
}

// RetrievalConfig holds the defaults used by downloads, probes and cost estimates
type RetrievalConfig struct {
	// SearchTimeout bounds descriptor retrieval for cost estimates
	SearchTimeout time.Duration `mapstructure:"search_timeout" yaml:"search_timeout"`

	// PeerSearchTimeout bounds each peer lookup
	PeerSearchTimeout time.Duration `mapstructure:"peer_search_timeout" yaml:"peer_search_timeout"`

	// BlobTimeout bounds each per-peer fetch in probes and descriptor downloads
	BlobTimeout time.Duration `mapstructure:"blob_timeout" yaml:"blob_timeout"`

	// DownloadTimeout bounds the start of a download
	DownloadTimeout time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`

	// DataRate is the price in LBC per megabyte
	DataRate float64 `mapstructure:"data_rate" yaml:"data_rate"`

	// PaymentPolicyGenerous disables data cost entirely
	PaymentPolicyGenerous bool `mapstructure:"payment_policy_generous" yaml:"payment_policy_generous"`

	MaxKeyFee        FeeConfig `mapstructure:"max_key_fee" yaml:"max_key_fee"`
	DisableMaxKeyFee bool      `mapstructure:"disable_max_key_fee" yaml:"disable_max_key_fee"`

	// Workers is the number of concurrent piece fetches per download
	Workers int `mapstructure:"workers" yaml:"workers"`

	// PieceRetries is how many times a piece fetch is retried across peers
	PieceRetries int `mapstructure:"piece_retries" yaml:"piece_retries"`
}

// FeeConfig is an amount in a currency
type FeeConfig struct {
	Amount   float64 `mapstructure:"amount" yaml:"amount"`
	Currency string  `mapstructure:"currency" yaml:"currency"`
}

// StorageConfig holds blob and metadata storage settings
type StorageConfig struct {
	// BlobDir defaults to <data_dir>/blobfiles
	BlobDir string `mapstructure:"blob_dir" yaml:"blob_dir"`

	// Compression is one of "none", "gzip", "zstd"
	Compression string `mapstructure:"compression" yaml:"compression"`

	// CompressionLevel is passed to the encoder
	CompressionLevel int `mapstructure:"compression_level" yaml:"compression_level"`

	// DatabasePath defaults to <data_dir>/blobnet.db
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// ExchangeConfig holds static currency rates into LBC
type ExchangeConfig struct {
	// Rates maps a currency code to its value in LBC, e.g. USD: 30
	Rates map[string]float64 `mapstructure:"rates" yaml:"rates"`
}

// ResolverConfig holds claim resolution settings
type ResolverConfig struct {
	// ClaimsFile is a YAML file of known claims
	ClaimsFile string `mapstructure:"claims_file" yaml:"claims_file"`

	CacheSize int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// AnalyticsConfig holds download event reporting settings
type AnalyticsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// EventLogPath is a rotated JSON file receiving download events
	EventLogPath string `mapstructure:"event_log_path" yaml:"event_log_path"`
}

// BlobnetConfig is the configuration shared by blobnet and blobnetd
type BlobnetConfig struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	P2P       P2PConfig       `mapstructure:"p2p" yaml:"p2p"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Exchange  ExchangeConfig  `mapstructure:"exchange" yaml:"exchange"`
	Resolver  ResolverConfig  `mapstructure:"resolver" yaml:"resolver"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Analytics AnalyticsConfig `mapstructure:"analytics" yaml:"analytics"`
}

// BlobDir returns the configured blob directory or its default under DataDir
func (c *BlobnetConfig) BlobDir() string {
	if c.Storage.BlobDir != "" {
		return c.Storage.BlobDir
	}
	return filepath.Join(c.Server.DataDir, "blobfiles")
}

// DatabasePath returns the configured database path or its default under DataDir
func (c *BlobnetConfig) DatabasePath() string {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath
	}
	return filepath.Join(c.Server.DataDir, "blobnet.db")
}

// IdentityKeyPath returns the configured key path or its default under DataDir
func (c *BlobnetConfig) IdentityKeyPath() string {
	if c.P2P.Identity.KeyPath != "" {
		return c.P2P.Identity.KeyPath
	}
	return filepath.Join(c.Server.DataDir, "identity.pem")
}

// DownloadDir returns the configured download directory or its default under DataDir
func (c *BlobnetConfig) DownloadDir() string {
	if c.Server.DownloadDir != "" {
		return c.Server.DownloadDir
	}
	return filepath.Join(c.Server.DataDir, "downloads")
}

// DefaultBlobnetConfig returns sensible defaults
func DefaultBlobnetConfig() *BlobnetConfig {
	return &BlobnetConfig{
		Log: LogConfig{
			Level:        "info",
			Format:       "pretty",
			Output:       "stderr",
			MaxSizeMB:    100,
			MaxBackups:   3,
			MaxAgeDays:   28,
			EnableCaller: false,
			RedactFields: []string{"password", "token", "secret", "credential", "private_key"},
		},
		Server: ServerConfig{
			DataDir: "~/.local/share/blobnet",
			PIDFile: "",
		},
		P2P: P2PConfig{
			ListenAddresses: []string{
				"/ip4/0.0.0.0/tcp/3333",
				"/ip4/0.0.0.0/udp/3333/quic-v1",
			},
			ConnManager: ConnManagerConfig{
				LowWatermark:  50,
				HighWatermark: 200,
				GracePeriod:   30 * time.Second,
			},
			Bootstrap: BootstrapConfig{
				Peers:   []string{},
				Timeout: 10 * time.Second,
			},
			DHT: DHTConfig{
				Mode:               "auto",
				ReannounceInterval: time.Hour,
			},
			UseUPnP:    true,
			MDNS:       true,
			FetchRate:  50,
			FetchBurst: 10,
		},
		Retrieval: RetrievalConfig{
			SearchTimeout:     5 * time.Second,
			PeerSearchTimeout: 3 * time.Second,
			BlobTimeout:       3 * time.Second,
			DownloadTimeout:   180 * time.Second,
			DataRate:          0.0001,
			MaxKeyFee: FeeConfig{
				Amount:   50.0,
				Currency: "USD",
			},
			Workers:      4,
			PieceRetries: 3,
		},
		Storage: StorageConfig{
			Compression:      "zstd",
			CompressionLevel: 3,
		},
		Exchange: ExchangeConfig{
			Rates: map[string]float64{
				"USD": 30.0,
				"BTC": 1500000.0,
			},
		},
		Resolver: ResolverConfig{
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9133",
		},
		Analytics: AnalyticsConfig{
			Enabled: true,
		},
	}
}
