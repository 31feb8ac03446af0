package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"blobnet/internal/config"
	"blobnet/internal/logger"
	"blobnet/internal/service"

	"github.com/spf13/cobra"
)

var (
	// cfgFile is the path to the config file (set via --config flag)
	cfgFile string

	// cfg holds the loaded configuration
	cfg *config.BlobnetConfig

	// log is the logger instance
	log *logger.Logger

	// cmdStartTime tracks when command execution started
	cmdStartTime time.Time

	// cmdCtx is the command context with logger and command context
	cmdCtx context.Context

	// Global output flags
	outputFormat string
	verboseMode  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blobnet",
	Short: "blobnet fetches content-addressed streams from peers",
	Long: `blobnet resolves stream locators, estimates their cost, checks their
availability on the network and downloads them into the local download directory.`,
	SilenceUsage:     true,
	TraverseChildren: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		if err := loadConfig(); err != nil {
			return err
		}

		if verboseMode {
			cfg.Log.Level = "debug"
		}

		var err error
		log, err = logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		service.SetLoggers(log)

		cc := logger.NewCommandContext(cmd, args)
		cmdCtx = logger.WithCommandContext(context.Background(), cc)
		cmdCtx = logger.WithLogger(cmdCtx, log)

		cmdStartTime = time.Now()

		log.Debug("command started",
			"command", cc.Command,
			"args", cc.Args,
			"request_id", cc.RequestID,
		)

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if log == nil {
			return nil
		}

		cc := logger.CommandContextFrom(cmdCtx)
		log.Debug("command completed",
			"command", cc.Command,
			"duration_ms", time.Since(cmdStartTime).Milliseconds(),
			"request_id", cc.RequestID,
		)

		return log.Close()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(onInitialize)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/blobnet/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (json, yaml, table, quiet)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVar(&ephemeralPorts, "ephemeral", true, "listen on random ports so the CLI can run next to blobnetd")

	rootCmd.AddCommand(
		getCmd,
		costCmd,
		availabilityCmd,
		peersCmd,
		blobCmd,
		fileCmd,
		versionCmd,
	)
}

// onInitialize is called before any command runs
func onInitialize() {
	if cfgFile == "" {
		path, created, err := config.GenerateConfigIfNotExists(config.AppBlobnet)
		if err == nil && created {
			fmt.Fprintf(os.Stderr, "Created default config at: %s\n", path)
		}
	}
}

// loadConfig loads the configuration
func loadConfig() error {
	var err error
	cfg, err = config.Load(config.AppBlobnet, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}
