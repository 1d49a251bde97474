package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/StrathCole/oracle-priority/pkg/config"
	"github.com/StrathCole/oracle-priority/pkg/logging"
	"github.com/StrathCole/oracle-priority/pkg/server/resolver"
	"github.com/StrathCole/oracle-priority/pkg/store"
	"github.com/StrathCole/oracle-priority/pkg/version"

	// Import readers to register them
	_ "github.com/StrathCole/oracle-priority/pkg/server/sources/pyth"
	_ "github.com/StrathCole/oracle-priority/pkg/server/sources/switchboard"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "oracle-priority",
	Short: "Priority-ordered two-source price resolver",
	Long: `oracle-priority keeps one price record per asset, each bound to a Pyth feed and a
Switchboard account with a priority per slot. Resolving an asset reads both sources and
stores the price of the enabled source with the lowest rank that produced a reading.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads, overrides and validates the configuration. A missing default
// config file falls back to the built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		if cmd.Flags().Changed("config") || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = config.Default()
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetGlobal(logger)
	return logger, nil
}

// openService opens the configured store and builds the resolver on top of it.
func openService(cfg *config.Config, logger *logging.Logger) (*resolver.Service, store.Store, error) {
	st, err := store.Open(store.Options{
		Backend:   cfg.Store.Backend,
		Path:      cfg.Store.Path,
		CacheSize: cfg.Store.CacheSize,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	readers, err := resolver.ReadersFromConfig(cfg.Sources, logger)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	opts := append([]resolver.Option{
		resolver.WithLogger(logger),
		resolver.WithReadTimeout(cfg.Resolver.ReadTimeout.ToDuration()),
	}, readers...)
	return resolver.New(st, opts...), st, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
