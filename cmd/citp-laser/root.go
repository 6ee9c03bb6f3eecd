package main

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	metricsAddr string
	ifaceName   string
)

var rootCmd = &cobra.Command{
	Use:           "citp-laser",
	Short:         "CITP laser feed peer",
	Long:          `Streams laser feeds to CITP visualisers, or monitors peers that do.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "TOML config file")
	pf.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error, disabled")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "address for /metrics and /status, e.g. :9100")
	pf.StringVar(&ifaceName, "interface", "", "network interface for multicast")

	rootCmd.AddCommand(runCmd, monitorCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "citp-laser:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the persistent
// flags the user set on top of it.
func loadConfig(cmd *cobra.Command) (cliConfig, error) {
	cfg := defaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = loadConfigFile(configPath); err != nil {
			return cliConfig{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("interface") {
		cfg.Interface = ifaceName
	}
	return cfg, nil
}

func newLoggerFactory(level string) (*logging.DefaultLoggerFactory, error) {
	lvl, ok := map[string]logging.LogLevel{
		"trace":    logging.LogLevelTrace,
		"debug":    logging.LogLevelDebug,
		"info":     logging.LogLevelInfo,
		"warn":     logging.LogLevelWarn,
		"error":    logging.LogLevelError,
		"disabled": logging.LogLevelDisabled,
	}[strings.ToLower(level)]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = lvl
	return f, nil
}

func lookupInterface(name string) (*net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", name, err)
	}
	return ifi, nil
}
