package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blobnet/internal/config"
	"blobnet/internal/logger"
	"blobnet/internal/version"
)

var (
	cfgFile     string
	showVersion bool
)

func init() {
	flag.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/blobnetd/config.yaml)")
	flag.BoolVar(&showVersion, "version", false, "show version")
}

func main() {
	flag.Parse()

	if showVersion {
		info := version.Get()
		fmt.Printf("blobnetd %s\n", info.String())
		fmt.Println(info.Full())
		os.Exit(0)
	}

	// Auto-generate config on first run
	if cfgFile == "" {
		path, created, err := config.GenerateConfigIfNotExists(config.AppBlobnetd)
		if err == nil && created {
			stdlog.Printf("Created default config at: %s", path)
		}
	}

	cfg, err := config.Load(config.AppBlobnetd, cfgFile)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
		stdlog.Fatalf("Failed to create data directory %q: %v", cfg.Server.DataDir, err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = log.Close() }()

	configFile := cfgFile
	if configFile == "" {
		configFile = config.ConfigFileUsed(config.AppBlobnetd)
	}

	cc := logger.NewDaemonContext("blobnetd")
	ctx := logger.WithCommandContext(context.Background(), cc)
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting blobnetd",
		"version", version.Get().String(),
		"log_level", cfg.Log.Level,
		"data_dir", cfg.Server.DataDir,
		"config_file", configFile,
		"request_id", cc.RequestID,
	)

	log.Debug("P2P configuration",
		"listen_addresses", cfg.P2P.ListenAddresses,
		"dht_mode", cfg.P2P.DHT.Mode,
		"mdns", cfg.P2P.MDNS,
		"use_upnp", cfg.P2P.UseUPnP,
		"bootstrap_peers", len(cfg.P2P.Bootstrap.Peers),
	)

	log.Debug("retrieval configuration",
		"data_rate", cfg.Retrieval.DataRate,
		"generous", cfg.Retrieval.PaymentPolicyGenerous,
		"max_key_fee", cfg.Retrieval.MaxKeyFee.Amount,
		"max_key_fee_currency", cfg.Retrieval.MaxKeyFee.Currency,
		"disable_max_key_fee", cfg.Retrieval.DisableMaxKeyFee,
		"download_timeout", cfg.Retrieval.DownloadTimeout,
	)

	daemon := NewDaemon(cfg, cfgFile, log)

	if err := daemon.Start(ctx); err != nil {
		log.Error("failed to start daemon", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received shutdown signal",
		"signal", sig.String(),
		"request_id", cc.RequestID,
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := daemon.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
