package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/cards/scryfall"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
)

// PrintingLookup fetches single printings from the card catalog.
// *scryfall.Client satisfies it.
type PrintingLookup interface {
	GetCard(ctx context.Context, id string) (*scryfall.Record, error)
	GetCardBySetNumber(ctx context.Context, set, collectorNumber string) (*scryfall.Record, error)
}

// RefreshReport summarizes a deck refresh.
type RefreshReport struct {
	Deck      *models.Deck `json:"deck"`
	Refreshed int          `json:"refreshed"`
	Missing   []string     `json:"missing"` // names of cards the catalog no longer knows
}

// RefreshDeck re-fetches every resolved card of a deck and rewrites its
// catalog fields. A card is looked up by catalog id first and by set and
// collector number when the id is gone. Cards found neither way keep their
// stored data. Any other lookup error aborts the refresh and leaves the deck
// untouched. Unresolved rows are not looked up.
func (s *Service) RefreshDeck(ctx context.Context, id string, lookup PrintingLookup) (*RefreshReport, error) {
	if lookup == nil {
		return nil, fmt.Errorf("printing lookup cannot be nil")
	}

	_, cards, err := s.GetDeck(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &RefreshReport{Missing: []string{}}
	for _, card := range cards {
		if !card.IsResolved() {
			continue
		}

		rec, err := fetchPrinting(ctx, lookup, card)
		if scryfall.IsNotFound(err) {
			report.Missing = append(report.Missing, card.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to refresh %q: %w", card.Name, err)
		}

		applyRecord(card, rec)
		report.Refreshed++
	}

	err = s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return s.decks.WithTx(tx).ReplaceCards(ctx, id, cards)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save refreshed deck: %w", err)
	}

	deck, err := s.decks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeckNotFound, id)
	}
	report.Deck = deck

	s.logger.Info("deck refreshed",
		zap.String("deck_id", id),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("missing", len(report.Missing)))

	return report, nil
}

func fetchPrinting(ctx context.Context, lookup PrintingLookup, card *models.DeckCard) (*scryfall.Record, error) {
	rec, err := lookup.GetCard(ctx, *card.CatalogID)
	if !scryfall.IsNotFound(err) || card.SetCode == "" || card.CollectorNumber == "" {
		return rec, err
	}
	return lookup.GetCardBySetNumber(ctx, card.SetCode, card.CollectorNumber)
}

// applyRecord copies the catalog fields of rec onto card. Quantity, board
// and finish stay as imported.
func applyRecord(card *models.DeckCard, rec *scryfall.Record) {
	catalogID := rec.ID
	card.CatalogID = &catalogID
	card.Name = rec.Name
	card.SetCode = rec.SetCode
	card.CollectorNumber = rec.CollectorNumber
	card.CatalogData = rec.Raw
	card.ImageURL = nil
	if imageURL := rec.ImageURL(); imageURL != "" {
		card.ImageURL = &imageURL
	}
}

var _ PrintingLookup = (*scryfall.Client)(nil)
