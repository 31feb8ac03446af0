// Package main provides the blobnetd daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"blobnet/internal/config"
	"blobnet/internal/logger"
	"blobnet/internal/metrics"
	"blobnet/internal/service"
)

// Daemon manages the blobnetd components and their lifecycle.
type Daemon struct {
	cfg     *config.BlobnetConfig
	cfgFile string
	log     *logger.Logger

	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	node          *service.Node
	watcher       *config.ConfigWatcher

	mu      sync.Mutex
	running bool
}

// NewDaemon creates a new daemon instance.
func NewDaemon(cfg *config.BlobnetConfig, cfgFile string, log *logger.Logger) *Daemon {
	service.SetLoggers(log)

	return &Daemon{
		cfg:     cfg,
		cfgFile: cfgFile,
		log:     log,
		metrics: metrics.New(),
	}
}

// Start initializes and starts all daemon components in order:
// metrics -> node -> config watcher.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon already running")
	}

	d.log.Info("starting daemon components")

	if err := d.writePIDFile(); err != nil {
		d.log.Warn("failed to write PID file", "error", err, "path", d.cfg.Server.PIDFile)
	}

	if d.cfg.Metrics.Enabled {
		d.metricsServer = metrics.NewServer(d.cfg.Metrics.ListenAddr, d.metrics)
		if err := d.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	node, err := service.Start(ctx, d.cfg, d.metrics)
	if err != nil {
		d.stopMetrics(ctx)
		return fmt.Errorf("failed to start node: %w", err)
	}
	d.node = node

	d.startWatcher()

	d.running = true
	d.log.Info("daemon started successfully", "peer_id", node.P2P().Host.PeerID())

	return nil
}

// startWatcher reloads retrieval policy, rates and claims when the config
// file changes. A daemon started without a config file on disk runs
// without a watcher.
func (d *Daemon) startWatcher() {
	w, err := config.NewConfigWatcher(config.AppBlobnetd, d.cfgFile)
	if err != nil {
		d.log.Debug("config watcher disabled", "error", err)
		return
	}
	w.OnChange(func(cfg *config.BlobnetConfig) {
		d.log.Info("configuration changed, reloading", "file", w.ConfigFile())
		d.node.Reload(cfg)
	})
	w.OnError(func(err error) {
		d.log.Warn("ignoring invalid configuration change", "error", err)
	})
	w.Start()
	d.watcher = w
}

// Stop cancels in-flight downloads and shuts components down in reverse order.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.log.Info("stopping daemon components", "active_downloads", len(d.node.Downloads()))

	var errs []error

	if err := d.node.Close(); err != nil {
		errs = append(errs, fmt.Errorf("node: %w", err))
	}

	if err := d.stopMetrics(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	if err := d.removePIDFile(); err != nil {
		d.log.Warn("failed to remove PID file", "error", err)
	}

	d.running = false

	if len(errs) > 0 {
		err := errors.Join(errs...)
		d.log.Error("daemon stopped with errors", "error", err)
		return err
	}

	d.log.Info("daemon stopped")
	return nil
}

func (d *Daemon) stopMetrics(ctx context.Context) error {
	if d.metricsServer == nil {
		return nil
	}
	return d.metricsServer.Stop(ctx)
}

// writePIDFile writes the daemon's PID to a file.
func (d *Daemon) writePIDFile() error {
	if d.cfg.Server.PIDFile == "" {
		return nil
	}

	pidFile := config.ExpandPath(d.cfg.Server.PIDFile)

	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	pid := os.Getpid()
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.log.Debug("wrote PID file", "path", pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.cfg.Server.PIDFile == "" {
		return nil
	}

	if err := os.Remove(config.ExpandPath(d.cfg.Server.PIDFile)); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// Node returns the running node.
func (d *Daemon) Node() *service.Node {
	return d.node
}

// IsRunning returns true if the daemon is running.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
