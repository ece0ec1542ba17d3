// Package commands implements the CLI commands for rulecrawl.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/rulecrawl/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "rulecrawl",
	Short: "Rule-based data extraction from rendered web pages",
	Long: `Rulecrawl renders web pages in headless Chrome and extracts data from
them with named rules: regular expressions, CSS selectors, XPath
expressions or JavaScript snippets. It can follow links breadth first
from a seed page and writes results as JSON, JSONL, YAML or CSV.

Examples:
  # Pull contact details from one page with a built-in template
  rulecrawl scrape -u "https://example.com/contact" -t "contact information"

  # Crawl up to 20 pages of a site with rules from a file
  rulecrawl scrape -u "https://example.com" -r rules.yaml \
      --crawl --max-pages 20 --same-host --format csv -o results.csv

  # Serve the HTTP API
  rulecrawl serve --addr :5000`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.rulecrawl.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".rulecrawl")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. RULECRAWL_SERVER_ADDR
	viper.SetEnvPrefix("RULECRAWL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// initLogger configures logging from the global flags.
func initLogger() {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", "path", used)
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	return err
}

// logError prints an error message to stderr. Commands return their
// errors instead of logging them, so each is reported once here.
func logError(format string, args ...any) {
	fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
