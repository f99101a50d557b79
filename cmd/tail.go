package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmurray2011/spindle/internal/decode"
	sperrors "github.com/jmurray2011/spindle/internal/errors"
	"github.com/jmurray2011/spindle/internal/local"
	"github.com/jmurray2011/spindle/internal/output"
	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/internal/rules"
	"github.com/jmurray2011/spindle/internal/ui"

	"github.com/spf13/cobra"
)

// tailNotifyBuffer is the store subscription buffer. A full buffer only
// delays output: every wake-up drains all unobserved records.
const tailNotifyBuffer = 16

var (
	tailPattern      string
	tailPreset       string
	tailLoadExisting bool
	tailInterval     time.Duration
	tailNoDetect     bool
)

var tailCmd = &cobra.Command{
	Use:   "tail [source...]",
	Short: "Follow sources and print records as they arrive",
	Long: `Follow one or more sources, similar to 'tail -f'. Every new batch is
classified, filtered and highlighted by the configured rules before it is
printed.

Source URIs:
  file:///path/to/file.log                     Local file
  /var/log/app.log                             Local file (shorthand)
  udp://:7071?protocol=log4j                   log4j XML events over UDP
  @alias-name                                  Config alias

With no sources, default_sources from the config file are used.

Examples:
  # Tail a local file, detecting its layout
  spindle tail /var/log/app.log

  # Tail with an explicit pattern
  spindle tail app.log --pattern '^(?<Type>\w+): (?<Description>.*)$'

  # Start from the beginning of the file
  spindle tail app.log --load-existing

  # Merge a file and a UDP listener into one stream, as JSON lines
  spindle tail @web udp://:7071 -o json`,
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().StringVar(&tailPattern, "pattern", "", "Decode pattern (regex with named groups) for file sources")
	tailCmd.Flags().StringVar(&tailPreset, "preset", "", "Built-in decode pattern: plain, pipe, log4j, syslog, clf")
	tailCmd.Flags().BoolVar(&tailLoadExisting, "load-existing", false, "Read file sources from the beginning")
	tailCmd.Flags().DurationVar(&tailInterval, "interval", 0, "File polling interval (default 250ms)")
	tailCmd.Flags().BoolVar(&tailNoDetect, "no-detect", false, "Do not guess a preset for files without a pattern")
}

func tailOverrides() fileOverrides {
	return fileOverrides{
		Pattern:      tailPattern,
		Preset:       tailPreset,
		LoadExisting: tailLoadExisting,
		Interval:     tailInterval,
		Detect:       !tailNoDetect,
	}
}

func runTail(cmd *cobra.Command, args []string) error {
	app := GetApp(cmd)

	ing, err := app.OpenIngest(args, tailOverrides())
	if err != nil {
		return err
	}
	defer func() { _ = ing.Close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle Ctrl+C gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			app.Render.Status("\nStopping tail...")
			cancel()
		case <-ctx.Done():
		}
	}()

	formatter := output.NewFormatter(app.GetOutputFormat(), os.Stdout, ui.WithNoColor(app.Config.NoColor))

	changes, unsubscribe := ing.Store.Subscribe(tailNotifyBuffer)
	defer unsubscribe()

	if err := ing.Start(ctx, app.Logger); err != nil {
		return err
	}
	for _, in := range ing.Instances {
		app.Render.Status("Tailing %s (%s)", in.Provider.Name(), in.Kind)
	}
	app.Render.Status("Ctrl+C to stop")
	app.Debugf("tailing %s", describeTail(ing))

	for {
		select {
		case <-ctx.Done():
			return finish(formatter, ing)
		case <-changes:
			if err := printNew(formatter, ing); err != nil {
				return err
			}
		}
	}
}

// finish closes the providers, which waits for their final drains, and
// prints whatever reached the store since the last wake-up.
func finish(f *output.Formatter, ing *Ingest) error {
	if err := ing.Close(); err != nil {
		Debugf("closing sources: %v", err)
	}
	return printNew(f, ing)
}

// printNew renders the records not yet printed. Classification rewrites
// the stored records in place.
func printNew(f *output.Formatter, ing *Ingest) error {
	fresh := ing.Store.NewEntries()
	if len(fresh) == 0 {
		return nil
	}
	return f.FormatEntries(evaluate(ing.Pipeline, fresh))
}

// evaluate runs records through the pipeline and keeps the visible ones.
func evaluate(p *rules.Pipeline, records []*record.Record) []output.Entry {
	entries := make([]output.Entry, 0, len(records))
	for _, r := range records {
		v := p.Process(r)
		if !v.Visible {
			continue
		}
		entries = append(entries, output.Entry{Record: r, Style: v.Style, Highlighted: v.Highlighted})
	}
	return entries
}

func presetPattern(name string) (string, error) {
	p, ok := decode.Preset(name)
	if !ok {
		return "", sperrors.UnknownValueError("preset", name, decode.PresetNames())
	}
	return p, nil
}

// detectPattern samples the file for a known layout. Files that do not
// exist yet get the plain pattern.
func detectPattern(path string) string {
	name := local.DetectPreset(path)
	p, _ := decode.Preset(name)
	Debugf("detected %s layout for %s", name, path)
	return p
}

func describeTail(ing *Ingest) string {
	return fmt.Sprintf("%d source(s), %d rule(s)", len(ing.Instances), ruleCount(ing.Pipeline))
}

func ruleCount(p *rules.Pipeline) int {
	if p == nil {
		return 0
	}
	return p.Classify.Len() + p.Filter.Len() + p.Extract.Len() + p.Highlight.Len()
}
