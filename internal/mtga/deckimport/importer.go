package deckimport

import (
	"context"

	"go.uber.org/zap"
)

// Importer runs the full pipeline: parse (or fetch through the proxy),
// consolidate, then resolve both boards against the catalog.
type Importer struct {
	resolver *Resolver
	urls     *URLImporter
	logger   *zap.Logger
	progress ProgressFunc
}

// NewImporter creates an Importer. urls may be nil, in which case URL
// imports report that they are not configured.
func NewImporter(resolver *Resolver, urls *URLImporter, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		resolver: resolver,
		urls:     urls,
		logger:   logger,
	}
}

// WithProgress returns a copy of the importer that reports chunk progress to fn.
func (i *Importer) WithProgress(fn ProgressFunc) *Importer {
	cp := *i
	cp.progress = fn
	return &cp
}

// Parse parses and consolidates text without resolving it.
func (i *Importer) Parse(text string) *ParsedDeck {
	return ParseText(text)
}

// ImportText parses text and resolves every entry.
func (i *Importer) ImportText(ctx context.Context, text string) *Result {
	return i.Resolve(ctx, ParseText(text))
}

// ImportURL fetches a deck through the URL import proxy and resolves it.
func (i *Importer) ImportURL(ctx context.Context, sourceURL string) *Result {
	if i.urls == nil {
		return &Result{
			Mainboard: []ResolvedCardEntry{},
			Sideboard: []ResolvedCardEntry{},
			Errors:    []string{"URL import is not configured"},
		}
	}
	return i.Resolve(ctx, i.urls.Import(ctx, sourceURL))
}

// Resolve resolves an already parsed deck. Boards are consolidated again
// so decks from other sources get the same guarantees as parsed text.
func (i *Importer) Resolve(ctx context.Context, deck *ParsedDeck) *Result {
	result := &Result{
		Name:       deck.Name,
		Errors:     append([]string{}, deck.Errors...),
		Unresolved: []UnresolvedCardEntry{},
	}

	var missing []UnresolvedCardEntry
	result.Mainboard, missing = i.resolver.ResolveWithProgress(ctx, Consolidate(deck.Mainboard), i.sectionProgress(SectionMainboard))
	result.Unresolved = append(result.Unresolved, missing...)

	result.Sideboard, missing = i.resolver.ResolveWithProgress(ctx, Consolidate(deck.Sideboard), i.sectionProgress(SectionSideboard))
	result.Unresolved = append(result.Unresolved, missing...)

	i.logger.Info("deck import finished",
		zap.String("name", result.Name),
		zap.Int("mainboard", len(result.Mainboard)),
		zap.Int("sideboard", len(result.Sideboard)),
		zap.Int("unresolved", len(result.Unresolved)),
		zap.Int("warnings", len(result.Errors)),
		zap.Bool("total_failure", result.TotalFailure()))

	return result
}

func (i *Importer) sectionProgress(section Section) ProgressFunc {
	if i.progress == nil {
		return nil
	}
	fn := i.progress
	return func(p Progress) {
		p.Section = section
		fn(p)
	}
}
