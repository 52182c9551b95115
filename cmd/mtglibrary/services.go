package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/config"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/cards/scryfall"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/decksource"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage"
)

// openStorage opens the deck library, applying migrations when configured.
func openStorage(c *config.Config, logger *zap.Logger) (*storage.Service, error) {
	path, err := c.DatabasePath()
	if err != nil {
		return nil, err
	}

	dbConfig := storage.DefaultConfig(path)
	dbConfig.AutoMigrate = c.Database.AutoMigrate

	db, err := storage.Open(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open deck library: %w", err)
	}

	logger.Debug("Deck library opened", zap.String("path", path))
	return storage.NewService(db, logger.Named("storage")), nil
}

// newCatalog builds the Scryfall client from configuration.
func newCatalog(c *config.Config) (*scryfall.Client, error) {
	timeout, err := c.GetScryfallTimeout()
	if err != nil {
		return nil, err
	}

	var interval time.Duration
	if c.Scryfall.RateLimit > 0 {
		interval = time.Duration(float64(time.Second) / c.Scryfall.RateLimit)
	}

	return scryfall.NewClient(
		scryfall.WithBaseURL(c.Scryfall.BaseURL),
		scryfall.WithUserAgent(c.Scryfall.UserAgent),
		scryfall.WithHTTPClient(&http.Client{Timeout: timeout}),
		scryfall.WithRateLimit(interval),
	), nil
}

// newImporter builds the import pipeline. URL imports go through the
// configured proxy; a blank proxy URL disables them.
func newImporter(c *config.Config, logger *zap.Logger) (*deckimport.Importer, error) {
	catalog, err := newCatalog(c)
	if err != nil {
		return nil, err
	}
	return importerFor(c, catalog, logger), nil
}

// importerFor builds the import pipeline over an existing catalog client.
func importerFor(c *config.Config, catalog deckimport.Catalog, logger *zap.Logger) *deckimport.Importer {
	resolver := deckimport.NewResolver(catalog,
		deckimport.WithLogger(logger.Named("resolver")),
		deckimport.WithChunkSize(c.Import.ChunkSize),
		deckimport.WithNotFoundRetry(c.Import.RetryNotFound))

	var urls *deckimport.URLImporter
	if c.Import.ProxyURL != "" {
		urls = deckimport.NewURLImporter(c.Import.ProxyURL, nil, logger.Named("url"))
	}

	return deckimport.NewImporter(resolver, urls, logger.Named("import"))
}

// newSources builds the deck site fetchers behind the URL import proxy.
func newSources(c *config.Config, logger *zap.Logger) (*decksource.Service, error) {
	timeout, err := c.GetSourcesTimeout()
	if err != nil {
		return nil, err
	}

	sourceConfig := decksource.DefaultConfig()
	sourceConfig.MoxfieldAPI = c.Sources.MoxfieldAPI
	sourceConfig.ArchidektAPI = c.Sources.ArchidektAPI
	sourceConfig.UserAgent = c.Scryfall.UserAgent
	sourceConfig.RequestTimeout = timeout
	sourceConfig.RateLimit = c.Sources.RateLimit

	return decksource.NewService(sourceConfig, nil, logger.Named("sources")), nil
}
