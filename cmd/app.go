package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmurray2011/spindle/internal/api"
	sperrors "github.com/jmurray2011/spindle/internal/errors"
	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/rules"
	"github.com/jmurray2011/spindle/internal/source"
	"github.com/jmurray2011/spindle/internal/store"
	"github.com/jmurray2011/spindle/internal/ui"
)

// appContextKey is the context key for the App instance.
type appContextKey struct{}

// Config holds the resolved runtime settings.
type Config struct {
	OutputFormat  string
	Verbose       bool
	NoColor       bool
	Quiet         bool
	ConfigPath    string
	StoreCapacity int
	FlushInterval time.Duration
	MaxPending    int
	APIAddr       string
}

// App holds the application dependencies that can be injected for testing.
type App struct {
	Config Config
	Render *ui.Renderer
	Logger logging.Logger
}

// NewApp creates a new App with default configuration from viper.
func NewApp() *App {
	cfg := Config{
		OutputFormat:  getOutputFormat(),
		Verbose:       IsVerbose(),
		NoColor:       noColor,
		Quiet:         quiet,
		ConfigPath:    configPath(),
		StoreCapacity: viper.GetInt("store-capacity"),
		FlushInterval: viper.GetDuration("flush-interval"),
		MaxPending:    viper.GetInt("max-pending"),
		APIAddr:       viper.GetString("api-addr"),
	}
	return NewAppWithConfig(cfg, render)
}

// NewAppWithConfig creates a new App with the given configuration.
// This is primarily used for testing.
func NewAppWithConfig(cfg Config, renderer *ui.Renderer) *App {
	if renderer == nil {
		renderer = ui.NewRendererWithOptions(ui.WithNoColor(cfg.NoColor), ui.WithQuiet(cfg.Quiet))
	}
	return &App{
		Config: cfg,
		Render: renderer,
		Logger: logging.Default(),
	}
}

// GetApp retrieves the App from the command context.
// If no App is set, it creates a new default one.
func GetApp(cmd *cobra.Command) *App {
	if ctx := cmd.Context(); ctx != nil {
		if app, ok := ctx.Value(appContextKey{}).(*App); ok {
			return app
		}
	}
	return NewApp()
}

// SetApp stores the App in the context for a command.
func SetApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appContextKey{}, app)
}

// Debugf prints a debug message if verbose mode is enabled.
func (a *App) Debugf(format string, args ...interface{}) {
	if a.Config.Verbose {
		a.Render.Debug(format, args...)
	}
}

// GetOutputFormat returns the output format from Config or viper.
func (a *App) GetOutputFormat() string {
	if a.Config.OutputFormat != "" {
		return a.Config.OutputFormat
	}
	return viper.GetString("output")
}

// LoadSources reads the alias part of the config file.
func (a *App) LoadSources() (*source.Config, error) {
	cfg, err := source.LoadConfigFile(a.Config.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadPipeline builds the rule pipeline from the config file.
func (a *App) LoadPipeline() (*rules.Pipeline, error) {
	cfg, err := rules.LoadConfigFile(a.Config.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return cfg.Build(a.Logger.WithField("component", "rules"))
}

// fileOverrides are command-line settings applied to every file source.
type fileOverrides struct {
	Pattern      string
	Preset       string
	LoadExisting bool
	Interval     time.Duration
	// Detect picks a preset from the file's first lines when no pattern
	// is configured.
	Detect bool
}

func (o fileOverrides) apply(fs source.FileSettings) (source.FileSettings, error) {
	if o.Preset != "" {
		p, err := presetPattern(o.Preset)
		if err != nil {
			return fs, err
		}
		fs.Pattern = p
	}
	if o.Pattern != "" {
		fs.Pattern = o.Pattern
	}
	if o.LoadExisting {
		fs.LoadExisting = true
	}
	if o.Interval > 0 {
		fs.Interval = o.Interval
	}
	if fs.Pattern == "" && o.Detect {
		fs.Pattern = detectPattern(fs.Path)
	}
	return fs, nil
}

// Ingest is the store, rule pipeline and providers behind tail and serve.
type Ingest struct {
	Store     *store.Store
	Pipeline  *rules.Pipeline
	Instances []api.Instance
}

// OpenIngest resolves each URI or @alias and opens its provider against a
// fresh store. With no URIs the config's default sources are used.
// Providers are opened but not started.
func (a *App) OpenIngest(uris []string, overrides fileOverrides) (*Ingest, error) {
	cfg, err := a.LoadSources()
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		uris = cfg.DefaultSources
	}
	if len(uris) == 0 {
		return nil, sperrors.NoSourcesError()
	}

	pipeline, err := a.LoadPipeline()
	if err != nil {
		return nil, err
	}

	ing := &Ingest{
		Store:    store.New(store.WithMaxSize(a.Config.StoreCapacity)),
		Pipeline: pipeline,
	}
	deps := source.Deps{
		Sink:          ing.Store,
		Logger:        a.Logger,
		FlushInterval: a.Config.FlushInterval,
		MaxPending:    a.Config.MaxPending,
	}

	for _, uri := range uris {
		settings, err := source.Resolve(uri, cfg)
		if err != nil {
			_ = ing.Close()
			return nil, err
		}
		if fs, ok := settings.(source.FileSettings); ok {
			if settings, err = overrides.apply(fs); err != nil {
				_ = ing.Close()
				return nil, err
			}
		}

		p, err := source.Open(settings, deps)
		if err != nil {
			_ = ing.Close()
			return nil, fmt.Errorf("failed to open %s: %w", uri, err)
		}
		ing.Instances = append(ing.Instances, api.Instance{
			ID:       uuid.New(),
			URI:      uri,
			Kind:     settings.Kind(),
			Provider: p,
		})
		a.Debugf("opened %s provider %s", settings.Kind(), p.Name())
	}
	return ing, nil
}

// Start starts every provider. A provider that fails to start is reported
// and the rest keep running; Start fails only when none started.
func (i *Ingest) Start(ctx context.Context, logger logging.Logger) error {
	started := 0
	var errs []error
	for _, in := range i.Instances {
		if err := in.Provider.Start(ctx); err != nil {
			logger.Error("failed to start %s: %v", in.Provider.Name(), err)
			errs = append(errs, err)
			continue
		}
		started++
	}
	if started == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Close closes every provider.
func (i *Ingest) Close() error {
	var errs []error
	for _, in := range i.Instances {
		if err := in.Provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
