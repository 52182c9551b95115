package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/forgemaster-mtg/mtglibrary/internal/api"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckexport"
	"github.com/forgemaster-mtg/mtglibrary/internal/watcher"
)

var (
	servePort  int
	serveInbox string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and URL import proxy",
	Long: `Starts the REST API, including the URL import proxy and the WebSocket
feed of import progress. With --inbox (or watch.inbox_dir in the config) the
inbox watcher runs alongside the server, and with backup.interval set the
library is backed up on that schedule.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "API port (default from config)")
	serveCmd.Flags().StringVar(&serveInbox, "inbox", "", "inbox directory to watch (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveInbox != "" {
		cfg.Watch.InboxDir = serveInbox
	}

	store, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	catalog, err := newCatalog(cfg)
	if err != nil {
		return err
	}
	importer := importerFor(cfg, catalog, logger)
	sources, err := newSources(cfg, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(&api.Config{
		Port:            cfg.Server.Port,
		FrontendOrigins: cfg.Server.FrontendOrigins,
	}, &api.Services{
		Importer:  importer,
		Sources:   sources,
		Storage:   store,
		Printings: catalog,
		Exporter:  deckexport.NewExporter(),
	}, logger.Named("api"))

	var inbox *watcher.Watcher
	if cfg.Watch.InboxDir != "" {
		if inbox, err = newWatcher(importer, store); err != nil {
			return err
		}
	}
	scheduler, err := newBackupScheduler()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	if inbox != nil {
		g.Go(func() error {
			return inbox.Run(ctx)
		})
	}
	if scheduler != nil {
		g.Go(func() error {
			return scheduler.Run(ctx)
		})
	}

	logger.Info("mtglibrary serving",
		zap.String("url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)),
		zap.String("inbox", cfg.Watch.InboxDir))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newWatcher builds the inbox watcher from configuration.
func newWatcher(importer watcher.Importer, store watcher.Saver) (*watcher.Watcher, error) {
	interval, err := cfg.GetWatchPollInterval()
	if err != nil {
		return nil, err
	}

	watchConfig := watcher.DefaultConfig(cfg.Watch.InboxDir)
	watchConfig.PollInterval = interval
	watchConfig.UseFsnotify = cfg.Watch.UseFsnotify

	return watcher.New(watchConfig, importer, store, logger.Named("watcher"))
}
