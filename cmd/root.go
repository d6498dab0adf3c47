package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aarchijain1/custom-rag-engine/internal/config"
	"github.com/aarchijain1/custom-rag-engine/internal/transport"
)

var (
	flagConfig string
	flagServer string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "rag-engine",
	Short: "Retrieval-augmented question answering over your documents",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "tool server URL (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.Debug = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// newToolClient builds a client for the tool server, honoring the --server
// override and the config's auto-start settings.
func newToolClient(cfg *config.Config, logger *zap.Logger) *transport.Client {
	url := flagServer
	if url == "" {
		url = cfg.Server.BaseURL()
	}
	return transport.NewClient(url, transport.Options{
		AutoStart:    cfg.AutoStart.EnabledOrDefault(),
		LockPath:     cfg.Store.Path + ".spawn.lock",
		ProbeTimeout: cfg.AutoStart.ProbeTimeout,
		PollInterval: cfg.AutoStart.PollInterval,
		MaxAttempts:  cfg.AutoStart.MaxAttempts,
		Logger:       logger,
	})
}
