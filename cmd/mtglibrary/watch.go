package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Import deck files dropped into an inbox directory",
	Long: `Watches an inbox directory for .txt, .dec and .dek deck lists. Each file
is imported, saved to the library under its file name, and moved to
processed/ or failed/. Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.Watch.InboxDir = args[0]
		}
		if cfg.Watch.InboxDir == "" {
			return errors.New("no inbox directory: pass one or set watch.inbox_dir")
		}

		store, err := openStorage(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		importer, err := newImporter(cfg, logger)
		if err != nil {
			return err
		}

		w, err := newWatcher(importer, store)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		return w.Run(ctx)
	},
}
