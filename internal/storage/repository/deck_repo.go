package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DeckRepository handles database operations for decks.
type DeckRepository interface {
	// Create inserts a new deck into the database.
	Create(ctx context.Context, deck *models.Deck) error

	// GetByID retrieves a deck by its ID. Returns nil if the deck does not exist.
	GetByID(ctx context.Context, id string) (*models.Deck, error)

	// List retrieves all decks, most recently modified first.
	List(ctx context.Context) ([]*models.Deck, error)

	// Delete deletes a deck and its cards. Returns ErrNotFound if the deck does not exist.
	Delete(ctx context.Context, id string) error

	// ReplaceCards replaces every card of a deck.
	ReplaceCards(ctx context.Context, deckID string, cards []*models.DeckCard) error

	// GetCards retrieves all cards in a deck ordered by board and position.
	GetCards(ctx context.Context, deckID string) ([]*models.DeckCard, error)

	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sql.Tx) DeckRepository
}

// deckRepository is the concrete implementation of DeckRepository.
type deckRepository struct {
	db DBTX
}

// NewDeckRepository creates a new deck repository.
func NewDeckRepository(db DBTX) DeckRepository {
	return &deckRepository{db: db}
}

func (r *deckRepository) WithTx(tx *sql.Tx) DeckRepository {
	return &deckRepository{db: tx}
}

// Create inserts a new deck into the database.
func (r *deckRepository) Create(ctx context.Context, deck *models.Deck) error {
	importErrors, err := json.Marshal(nonNil(deck.ImportErrors))
	if err != nil {
		return fmt.Errorf("failed to encode import errors: %w", err)
	}

	query := `
		INSERT INTO decks (
			id, name, source, source_url, import_errors, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		deck.ID,
		deck.Name,
		deck.Source,
		deck.SourceURL,
		string(importErrors),
		deck.CreatedAt,
		deck.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}

	return nil
}

const deckColumns = `
	d.id, d.name, d.source, d.source_url, d.import_errors, d.created_at, d.modified_at,
	COALESCE((
		SELECT SUM(c.quantity) FROM deck_cards c
		WHERE c.deck_id = d.id AND c.board != 'unresolved'
	), 0)
`

type scanner interface {
	Scan(dest ...any) error
}

func scanDeck(row scanner) (*models.Deck, error) {
	deck := &models.Deck{}
	var importErrors string
	err := row.Scan(
		&deck.ID,
		&deck.Name,
		&deck.Source,
		&deck.SourceURL,
		&importErrors,
		&deck.CreatedAt,
		&deck.ModifiedAt,
		&deck.CardCount,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(importErrors), &deck.ImportErrors); err != nil {
		return nil, fmt.Errorf("failed to decode import errors of deck %s: %w", deck.ID, err)
	}
	return deck, nil
}

// GetByID retrieves a deck by its ID.
func (r *deckRepository) GetByID(ctx context.Context, id string) (*models.Deck, error) {
	query := `SELECT ` + deckColumns + ` FROM decks d WHERE d.id = ?`

	deck, err := scanDeck(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck by id: %w", err)
	}

	return deck, nil
}

// List retrieves all decks.
func (r *deckRepository) List(ctx context.Context) ([]*models.Deck, error) {
	query := `SELECT ` + deckColumns + ` FROM decks d ORDER BY d.modified_at DESC, d.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	decks := []*models.Deck{}
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, deck)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decks: %w", err)
	}

	return decks, nil
}

// Delete deletes a deck by its ID.
func (r *deckRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deck_cards WHERE deck_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete deck cards: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deck %s: %w", id, ErrNotFound)
	}

	return nil
}

// ReplaceCards replaces every card of a deck and touches its modified_at.
func (r *deckRepository) ReplaceCards(ctx context.Context, deckID string, cards []*models.DeckCard) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deck_cards WHERE deck_id = ?`, deckID); err != nil {
		return fmt.Errorf("failed to clear deck cards: %w", err)
	}

	query := `
		INSERT INTO deck_cards (
			deck_id, board, position, quantity, name, set_code, collector_number,
			catalog_id, image_url, is_foil, is_commander, catalog_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, card := range cards {
		var catalogData *string
		if len(card.CatalogData) > 0 {
			s := string(card.CatalogData)
			catalogData = &s
		}

		result, err := r.db.ExecContext(ctx, query,
			deckID,
			card.Board,
			card.Position,
			card.Quantity,
			card.Name,
			card.SetCode,
			card.CollectorNumber,
			card.CatalogID,
			card.ImageURL,
			card.IsFoil,
			card.IsCommander,
			catalogData,
		)
		if err != nil {
			return fmt.Errorf("failed to add card %q to deck: %w", card.Name, err)
		}

		if id, err := result.LastInsertId(); err == nil {
			card.ID = id
		}
		card.DeckID = deckID
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE decks SET modified_at = ? WHERE id = ?`, time.Now().UTC(), deckID); err != nil {
		return fmt.Errorf("failed to touch deck: %w", err)
	}

	return nil
}

// GetCards retrieves all cards in a deck.
func (r *deckRepository) GetCards(ctx context.Context, deckID string) ([]*models.DeckCard, error) {
	query := `
		SELECT id, deck_id, board, position, quantity, name, set_code, collector_number,
		       catalog_id, image_url, is_foil, is_commander, catalog_data
		FROM deck_cards
		WHERE deck_id = ?
		ORDER BY CASE board WHEN 'mainboard' THEN 0 WHEN 'sideboard' THEN 1 ELSE 2 END, position
	`

	rows, err := r.db.QueryContext(ctx, query, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deck cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cards := []*models.DeckCard{}
	for rows.Next() {
		card := &models.DeckCard{}
		var catalogData sql.NullString
		err := rows.Scan(
			&card.ID,
			&card.DeckID,
			&card.Board,
			&card.Position,
			&card.Quantity,
			&card.Name,
			&card.SetCode,
			&card.CollectorNumber,
			&card.CatalogID,
			&card.ImageURL,
			&card.IsFoil,
			&card.IsCommander,
			&catalogData,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck card: %w", err)
		}
		if catalogData.Valid {
			card.CatalogData = []byte(catalogData.String)
		}
		cards = append(cards, card)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deck cards: %w", err)
	}

	return cards, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
