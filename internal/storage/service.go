package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage/repository"
)

// DefaultDeckName is used when neither the caller nor the import supplies a name.
const DefaultDeckName = "Imported Deck"

// ErrDeckNotFound is returned when a deck id does not exist.
var ErrDeckNotFound = errors.New("deck not found")

// Service provides high-level operations for storing and retrieving decks.
type Service struct {
	db     *DB
	decks  repository.DeckRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new storage service.
func NewService(db *DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     db,
		decks:  repository.NewDeckRepository(db.Conn()),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SaveImport stores an import result as a new deck in one transaction.
// Resolved entries keep their board and order; unresolved entries are kept
// on their own board.
func (s *Service) SaveImport(ctx context.Context, name, source, sourceURL string, result *deckimport.Result) (*models.Deck, error) {
	if result == nil {
		return nil, fmt.Errorf("import result cannot be nil")
	}

	if name == "" {
		name = result.Name
	}
	if name == "" {
		name = DefaultDeckName
	}

	now := s.now()
	deck := &models.Deck{
		ID:           uuid.NewString(),
		Name:         name,
		Source:       source,
		ImportErrors: append([]string{}, result.Errors...),
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	if sourceURL != "" {
		deck.SourceURL = &sourceURL
	}

	cards := cardsFromResult(result)

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		repo := s.decks.WithTx(tx)
		if err := repo.Create(ctx, deck); err != nil {
			return err
		}
		return repo.ReplaceCards(ctx, deck.ID, cards)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save import: %w", err)
	}

	deck.CardCount = result.CardCount()

	s.logger.Info("deck saved",
		zap.String("deck_id", deck.ID),
		zap.String("name", deck.Name),
		zap.String("source", source),
		zap.Int("cards", deck.CardCount),
		zap.Int("unresolved", len(result.Unresolved)))

	return deck, nil
}

func cardsFromResult(result *deckimport.Result) []*models.DeckCard {
	cards := make([]*models.DeckCard, 0, len(result.Mainboard)+len(result.Sideboard)+len(result.Unresolved))

	add := func(board string, entries []deckimport.ResolvedCardEntry) {
		for i, e := range entries {
			catalogID := e.CatalogID
			card := &models.DeckCard{
				Board:           board,
				Position:        i,
				Quantity:        e.Quantity,
				Name:            e.Name,
				SetCode:         e.Set,
				CollectorNumber: e.CollectorNumber,
				CatalogID:       &catalogID,
				IsFoil:          e.IsFoil,
				IsCommander:     e.IsCommander,
				CatalogData:     e.CatalogData,
			}
			if e.ImageURL != "" {
				imageURL := e.ImageURL
				card.ImageURL = &imageURL
			}
			cards = append(cards, card)
		}
	}
	add(models.BoardMainboard, result.Mainboard)
	add(models.BoardSideboard, result.Sideboard)

	for i, e := range result.Unresolved {
		cards = append(cards, &models.DeckCard{
			Board:           models.BoardUnresolved,
			Position:        i,
			Quantity:        e.Quantity,
			Name:            e.Name,
			SetCode:         e.Set,
			CollectorNumber: e.CollectorNumber,
			IsFoil:          e.IsFoil,
			IsCommander:     e.IsCommander,
		})
	}

	return cards
}

// GetDeck retrieves a deck with its cards.
func (s *Service) GetDeck(ctx context.Context, id string) (*models.Deck, []*models.DeckCard, error) {
	deck, err := s.decks.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if deck == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrDeckNotFound, id)
	}

	cards, err := s.decks.GetCards(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return deck, cards, nil
}

// ListDecks retrieves all stored decks.
func (s *Service) ListDecks(ctx context.Context) ([]*models.Deck, error) {
	return s.decks.List(ctx)
}

// DeleteDeck removes a deck and its cards.
func (s *Service) DeleteDeck(ctx context.Context, id string) error {
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return s.decks.WithTx(tx).Delete(ctx, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrDeckNotFound, id)
	}
	if err != nil {
		return err
	}

	s.logger.Info("deck deleted", zap.String("deck_id", id))
	return nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}
