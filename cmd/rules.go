package cmd

import (
	"os"

	"github.com/jmurray2011/spindle/internal/output"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List configured rules in evaluation order",
	Long: `List the classifier, filter, extractor and highlighter rules from the
configuration file, in the order they are evaluated.

Each record is first rewritten by every matching classifier, in order. It
is hidden when any filter matches, or when extractors are configured and
none of them match. Visible records take the style of the first matching
highlighter.

Rules are defined in ~/.spindle/config.yaml:

  classifiers:
    - name: slow requests
      field: description
      mode: regex
      pattern: 'took (?P<ms>\d{4,})ms'
      type: SLOW
      description: 'slow request (${ms}ms)'

  filters:
    - name: health checks
      mode: contains
      pattern: GET /health

  extractors:
    - name: orders only
      field: system
      pattern: orders

  highlighters:
    - name: errors
      field: type
      mode: exact
      pattern: ERROR
      foreground: "196"
      bold: true

Fields: system, type, thread, source, description
Modes:  exact, contains, icontains (default), regex`,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	app := GetApp(cmd)
	pipeline, err := app.LoadPipeline()
	if err != nil {
		return err
	}
	return output.NewFormatter(app.GetOutputFormat(), os.Stdout).FormatRules(output.RuleInfos(pipeline))
}
