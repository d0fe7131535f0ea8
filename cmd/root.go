// cmd/root.go
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gangsched/gangsched/internal/config"
)

var (
	logLevel   string
	configFile string
	poolSize   int
)

var rootCmd = &cobra.Command{
	Use:   "gangsched",
	Short: "Gang scheduler reconfiguration CLI",
}

// Execute runs the root command, exiting the process with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional YAML boot-parameter file (be_reserve_pct, be_period_ns, adjust_upper_bound_ns, rate_limit_us keys)")
	rootCmd.PersistentFlags().IntVar(&poolSize, "pool-size", 8, "Number of pCPUs in the pool")

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig layers boot parameters the way SPEC_FULL.md's AMBIENT STACK describes:
// defaults, then an optional YAML file, then environment variables (which take
// precedence over both).
func loadConfig() config.Config {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)

	c := config.Default()
	if configFile != "" {
		var fileErr error
		c, fileErr = config.LoadYAMLFile(c, configFile)
		if fileErr != nil {
			logrus.Fatalf("loading config file: %v", fileErr)
		}
	}
	c, err = config.LoadEnv(c)
	if err != nil {
		logrus.Fatalf("loading environment overrides: %v", err)
	}
	return c
}
