package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmurray2011/spindle/internal/api"
	"github.com/jmurray2011/spindle/internal/dispatch"
	"github.com/jmurray2011/spindle/internal/source"

	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize spindle configuration",
	Long: `Create a commented default configuration file at ~/.spindle/config.yaml
(or the path given with --config).

Examples:
  # Create default config (won't overwrite existing)
  spindle init

  # Force overwrite existing config
  spindle init --force`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = source.ConfigPath()
	}
	if path == "" {
		return fmt.Errorf("failed to locate home directory; pass --config")
	}

	created, err := createFileIfNotExists(path, generateDefaultConfig(), initForce)
	if err != nil {
		return err
	}
	app := GetApp(cmd)
	if created {
		app.Render.Success("Created %s", path)
		app.Render.Info("Edit it to add sources and rules, then run 'spindle sources'.")
	} else {
		app.Render.Warning("%s already exists (use --force to overwrite)", path)
	}
	return nil
}

func generateDefaultConfig() string {
	return fmt.Sprintf(`# spindle configuration

# Output format for tail: text, json, csv
output: text

# Diagnostic log format on stderr: text, json
log-format: text

# Records kept in memory; the oldest are trimmed first
store-capacity: %d

# How often each file provider hands its decoded lines to the store
flush-interval: %s

# Per-provider queue bound; records beyond it are dropped
max-pending: %d

# Listen address for 'spindle serve'
api-addr: %s

# Named sources, used as @name
sources:
  app:
    uri: file:///var/log/app.log
    description: application log
    # preset: log4j   # plain, pipe, log4j, syslog, clf
    # pattern: '^(?<Type>\w+) (?<Description>.*)$'
  # events:
  #   uri: udp://:7071?protocol=log4j

# Sources used when none are given on the command line
# default_sources: ["@app"]

# Rules. Fields: system, type, thread, source, description
# Modes: exact, contains, icontains (default), regex

# Classifiers rewrite matching records, in order
classifiers: []
#  - name: slow requests
#    mode: regex
#    pattern: 'took (?P<ms>\d{4,})ms'
#    type: SLOW
#    description: 'slow request (${ms}ms)'

# Filters hide matching records
filters: []
#  - name: health checks
#    mode: contains
#    pattern: GET /health

# Extractors: when any are set, only matching records are shown
extractors: []

# Highlighters: the first match styles the record
highlighters:
  - name: errors
    field: type
    mode: exact
    pattern: ERROR
    foreground: "196"
    bold: true
  - name: warnings
    field: type
    mode: exact
    pattern: WARN
    foreground: "214"
`, DefaultStoreCapacity, dispatch.DefaultFlushInterval, dispatch.DefaultMaxPending, api.DefaultAddr)
}

// createFileIfNotExists writes content to path, creating parent
// directories. It reports whether the file was written.
func createFileIfNotExists(path, content string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
