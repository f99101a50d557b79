package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jmurray2011/spindle/internal/api"
	"github.com/jmurray2011/spindle/internal/dispatch"
	_ "github.com/jmurray2011/spindle/internal/local" // Register file:// provider
	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/source"
	_ "github.com/jmurray2011/spindle/internal/udp" // Register udp:// provider
	"github.com/jmurray2011/spindle/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// DefaultStoreCapacity bounds the in-memory record store.
const DefaultStoreCapacity = 100000

var (
	outputFormat string
	cfgFile      string
	verbose      bool
	noColor      bool
	quiet        bool
	logFormat    string

	// render is the global renderer for all output
	render *ui.Renderer
)

var rootCmd = &cobra.Command{
	Use:   "spindle",
	Short: "Gather log threads as they are written",
	Long: `spindle - follows log files and network log streams, decodes every
line or event into a record, and runs the records through classification,
filter and highlight rules as they arrive.

Source URIs:
  file:///path/to/file.log?interval=250ms      Local file
  /var/log/app.log                             Local file (shorthand)
  udp://:7071?protocol=log4j                   log4j XML events over UDP
  @alias-name                                  Config alias

Configuration:
  Create ~/.spindle/config.yaml (spindle init) to define source aliases
  and rule sets:

    sources:
      web:
        uri: file:///var/log/web.log
        preset: log4j
      events:
        uri: udp://:7071?protocol=log4j

    default_sources: [web]

    filters:
      - name: health checks
        pattern: /health

    highlighters:
      - name: errors
        field: type
        mode: exact
        pattern: ERROR
        foreground: "196"
        bold: true

Examples:
  # Tail a local file
  spindle tail /var/log/app.log

  # Listen for log4j events and tail a file at the same time
  spindle tail udp://:7071 @web

  # Serve the records over HTTP and websocket
  spindle serve @web --addr 127.0.0.1:7080`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion sets the version string for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initConfig, initRenderer, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.spindle/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress status messages")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Diagnostic log format: text, json")

	// Bind flags to viper
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initRenderer initializes the global renderer with current settings.
func initRenderer() {
	render = ui.NewRendererWithOptions(
		ui.WithNoColor(noColor || os.Getenv("NO_COLOR") != ""),
		ui.WithQuiet(quiet),
	)
}

// initLogging points the package logger at stderr. Providers log at Warn
// and above unless verbose is set.
func initLogging() {
	level := logging.LevelWarn
	if IsVerbose() {
		level = logging.LevelDebug
	}
	if l := viper.GetString("log-level"); l != "" {
		level = logging.ParseLevel(l)
	}
	logging.Init(viper.GetString("log-format"), level)
}

// IsVerbose returns true if verbose mode is enabled
func IsVerbose() bool {
	return verbose || viper.GetBool("verbose")
}

// Debugf prints a debug message if verbose mode is enabled
func Debugf(format string, args ...interface{}) {
	if IsVerbose() && render != nil {
		render.Debug(format, args...)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if dir := source.ConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables: SPINDLE_STORE_CAPACITY, SPINDLE_API_ADDR, ...
	viper.SetEnvPrefix("SPINDLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("output", "text")
	viper.SetDefault("log-format", "text")
	viper.SetDefault("store-capacity", DefaultStoreCapacity)
	viper.SetDefault("flush-interval", dispatch.DefaultFlushInterval)
	viper.SetDefault("max-pending", dispatch.DefaultMaxPending)
	viper.SetDefault("api-addr", api.DefaultAddr)

	// Read config file (ignore if not found, warn on other errors)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}
}

// configPath is the file aliases and rule sets are read from.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return source.ConfigPath()
}

// getOutputFormat returns the output format from flags or config.
func getOutputFormat() string {
	if outputFormat != "" {
		return outputFormat
	}
	return viper.GetString("output")
}
