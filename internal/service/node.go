package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"blobnet/internal/analytics"
	"blobnet/internal/availability"
	"blobnet/internal/claims"
	"blobnet/internal/config"
	"blobnet/internal/cost"
	"blobnet/internal/download"
	"blobnet/internal/exchange"
	"blobnet/internal/logger"
	"blobnet/internal/metrics"
	"blobnet/internal/p2p"
	"blobnet/internal/storage/blob"
	"blobnet/internal/storage/sqlite"
	"blobnet/internal/transfer"
)

// SetLoggers points every retrieval component at l.
func SetLoggers(l *logger.Logger) {
	SetLogger(l)
	sqlite.SetLogger(l)
	p2p.SetLogger(l)
	claims.SetLogger(l)
	analytics.SetLogger(l)
	metrics.SetLogger(l)
	download.SetLogger(l)
	transfer.SetLogger(l)
	cost.SetLogger(l)
	availability.SetLogger(l)
}

// Node is a running node: storage, the P2P host and the retrieval
// service on top of them.
type Node struct {
	*Service

	cfg       *config.BlobnetConfig
	db        *sqlite.Store
	blobs     *blob.LocalStore
	p2p       *p2p.Node
	claims    *claims.FileResolver
	resolver  *claims.CachingResolver
	converter *exchange.Converter
	journal   *analytics.JournalSink
}

// Start opens storage, starts the P2P node and wires the service.
// Components started before a failure are closed again.
func Start(ctx context.Context, cfg *config.BlobnetConfig, m *metrics.Metrics) (_ *Node, err error) {
	n := &Node{cfg: cfg}
	defer func() {
		if err != nil {
			n.closeComponents()
		}
	}()

	if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	n.db, err = sqlite.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := n.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	n.blobs, err = blob.NewLocalStore(blob.LocalConfig{
		Path:             cfg.BlobDir(),
		Compression:      blob.CompressionType(cfg.Storage.Compression),
		CompressionLevel: cfg.Storage.CompressionLevel,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	n.p2p, err = p2p.StartNode(ctx, cfg.P2P, p2p.NodeOptions{
		KeyPath:           cfg.IdentityKeyPath(),
		Store:             n.blobs,
		Metrics:           m,
		PeerSearchTimeout: cfg.Retrieval.PeerSearchTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start p2p node: %w", err)
	}

	if cfg.Resolver.ClaimsFile != "" {
		n.claims, err = claims.NewFileResolver(config.ExpandPath(cfg.Resolver.ClaimsFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load claims: %w", err)
		}
	} else {
		n.claims = claims.NewStaticResolver()
	}
	n.resolver = claims.NewCachingResolver(n.claims, n.db.Claims(), claims.CacheConfig{
		Size: cfg.Resolver.CacheSize,
		TTL:  cfg.Resolver.CacheTTL,
	})
	n.converter = exchange.NewConverter(cfg.Exchange.Rates)

	sinks := analytics.Multi{analytics.NewMetricsSink(m)}
	if cfg.Analytics.Enabled {
		path := cfg.Analytics.EventLogPath
		if path == "" {
			path = filepath.Join(cfg.Server.DataDir, "events.jsonl")
		}
		n.journal, err = analytics.NewJournalSink(config.ExpandPath(path))
		if err != nil {
			return nil, fmt.Errorf("failed to open analytics journal: %w", err)
		}
		sinks = append(sinks, n.journal)
	}

	n.Service = New(cfg.Retrieval, cfg.DownloadDir(), Deps{
		Store:     n.db,
		Blobs:     n.blobs,
		Lookup:    n.p2p.Lookup,
		Fetcher:   n.p2p.Fetcher,
		Resolver:  n.resolver,
		Converter: n.converter,
		Analytics: sinks,
		Metrics:   m,
		Network:   n.p2p.Host,
		Pinger:    n.p2p,
	})

	log.Info("node ready",
		"peer_id", n.p2p.Host.PeerID(),
		"data_dir", cfg.Server.DataDir,
		"download_dir", cfg.DownloadDir(),
	)
	return n, nil
}

// P2P returns the underlying P2P node.
func (n *Node) P2P() *p2p.Node {
	return n.p2p
}

// Reload applies a changed configuration: retrieval policy, exchange
// rates and the claims file.
func (n *Node) Reload(cfg *config.BlobnetConfig) {
	n.ApplyConfig(cfg.Retrieval)
	n.converter.SetRates(cfg.Exchange.Rates)
	if err := n.claims.Reload(); err != nil {
		log.Warn("failed to reload claims", "error", err)
		return
	}
	n.resolver.Purge()
}

// Close cancels downloads in flight and closes every component.
func (n *Node) Close() error {
	if n.Service != nil {
		n.Shutdown(ErrShuttingDown)
	}
	return n.closeComponents()
}

func (n *Node) closeComponents() error {
	var errs []error
	if n.p2p != nil {
		errs = append(errs, n.p2p.Close())
	}
	if n.journal != nil {
		errs = append(errs, n.journal.Close())
	}
	if n.blobs != nil {
		errs = append(errs, n.blobs.Close())
	}
	if n.db != nil {
		errs = append(errs, n.db.Close())
	}
	return errors.Join(errs...)
}

// Config returns the configuration the node was started with.
func (n *Node) Config() *config.BlobnetConfig {
	return n.cfg
}
