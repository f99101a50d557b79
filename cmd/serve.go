package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmurray2011/spindle/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [source...]",
	Short: "Ingest sources and serve the records over HTTP",
	Long: `Follow one or more sources like tail, but instead of printing records
expose the store over HTTP:

  GET    /api/health                 status, uptime, entry count
  GET    /api/entries                all records (?view=1 applies rules, ?since=30m, ?limit=N)
  GET    /api/entries/new            records not returned by a previous call
  DELETE /api/entries                clear the store
  GET    /api/enabled                whether the store accepts batches
  PUT    /api/enabled                {"enabled": false} pauses ingestion globally
  GET    /api/providers              running providers
  POST   /api/providers/:id/pause    pause one provider
  POST   /api/providers/:id/start    resume one provider
  GET    /api/stream                 websocket, one message per new batch

Examples:
  spindle serve @web udp://:7071
  spindle serve /var/log/app.log --addr :8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from api-addr, 127.0.0.1:7080)")
	serveCmd.Flags().StringVar(&tailPattern, "pattern", "", "Decode pattern (regex with named groups) for file sources")
	serveCmd.Flags().StringVar(&tailPreset, "preset", "", "Built-in decode pattern: plain, pipe, log4j, syslog, clf")
	serveCmd.Flags().BoolVar(&tailLoadExisting, "load-existing", false, "Read file sources from the beginning")
	serveCmd.Flags().DurationVar(&tailInterval, "interval", 0, "File polling interval (default 250ms)")
}

func runServe(cmd *cobra.Command, args []string) error {
	app := GetApp(cmd)

	ing, err := app.OpenIngest(args, tailOverrides())
	if err != nil {
		return err
	}
	defer func() { _ = ing.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := serveAddr
	if addr == "" {
		addr = app.Config.APIAddr
	}
	srv := api.NewServer(api.Config{
		Addr:      addr,
		Store:     ing.Store,
		Pipeline:  ing.Pipeline,
		Instances: ing.Instances,
		Logger:    app.Logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	if err := srv.Start(); err != nil {
		return err
	}
	app.Render.Status("Serving %s on http://%s (Ctrl+C to stop)", describeTail(ing), srv.Addr())

	if err := ing.Start(gctx, app.Logger); err != nil {
		_ = srv.Stop()
		return err
	}

	g.Go(func() error {
		<-gctx.Done()
		app.Render.Status("\nShutting down...")
		return srv.Stop()
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
