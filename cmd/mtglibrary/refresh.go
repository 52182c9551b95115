package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh <deck-id>",
	Short: "Re-fetch the stored printings of a deck from Scryfall",
	Long: `Refresh looks up every resolved card of a stored deck again, first by
catalog id and then by set and collector number, and rewrites names, images
and catalog data. Cards Scryfall no longer knows keep their stored data and are
listed as missing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		catalog, err := newCatalog(cfg)
		if err != nil {
			return err
		}

		report, err := store.RefreshDeck(cmd.Context(), args[0], catalog)
		if err != nil {
			return err
		}

		logger.Info("Deck refreshed",
			zap.String("deck_id", report.Deck.ID),
			zap.Int("refreshed", report.Refreshed),
			zap.Int("missing", len(report.Missing)))

		cmd.Printf("%s: %d refreshed, %d missing\n", report.Deck.Name, report.Refreshed, len(report.Missing))
		for _, name := range report.Missing {
			cmd.Printf("  missing: %s\n", name)
		}
		return nil
	},
}
