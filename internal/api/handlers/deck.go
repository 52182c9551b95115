package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/api/response"
	"github.com/forgemaster-mtg/mtglibrary/internal/api/websocket"
	"github.com/forgemaster-mtg/mtglibrary/internal/logging"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckexport"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
)

// DeckStore reads, refreshes and deletes stored decks. *storage.Service
// satisfies it.
type DeckStore interface {
	ListDecks(ctx context.Context) ([]*models.Deck, error)
	GetDeck(ctx context.Context, id string) (*models.Deck, []*models.DeckCard, error)
	DeleteDeck(ctx context.Context, id string) error
	RefreshDeck(ctx context.Context, id string, lookup storage.PrintingLookup) (*storage.RefreshReport, error)
}

// DeckHandler handles stored deck API requests.
type DeckHandler struct {
	store     DeckStore
	printings storage.PrintingLookup
	exporter  *deckexport.Exporter
	events    *websocket.ImportObserver
	logger    *zap.Logger
}

// NewDeckHandler creates a new DeckHandler. printings may be nil, in which
// case refresh requests answer 503.
func NewDeckHandler(store DeckStore, printings storage.PrintingLookup, exporter *deckexport.Exporter, events *websocket.ImportObserver, logger *zap.Logger) *DeckHandler {
	if exporter == nil {
		exporter = deckexport.NewExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeckHandler{
		store:     store,
		printings: printings,
		exporter:  exporter,
		events:    events,
		logger:    logger,
	}
}

// DeckWithCards is a stored deck with its card rows grouped by board.
type DeckWithCards struct {
	*models.Deck
	Mainboard  []*models.DeckCard `json:"mainboard"`
	Sideboard  []*models.DeckCard `json:"sideboard"`
	Unresolved []*models.DeckCard `json:"unresolved"`
}

// ExportResponse is the JSON form of an exported deck.
type ExportResponse struct {
	Content  string                  `json:"content"`
	Format   deckexport.ExportFormat `json:"format"`
	Filename string                  `json:"filename"`
}

// GetDecks returns all stored decks, most recently modified first.
func (h *DeckHandler) GetDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.store.ListDecks(r.Context())
	if err != nil {
		response.InternalError(w, err)
		return
	}
	if decks == nil {
		decks = []*models.Deck{}
	}

	response.Success(w, decks)
}

// GetDeck returns a single deck by ID.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deck, cards, ok := h.loadDeck(w, r)
	if !ok {
		return
	}

	out := &DeckWithCards{
		Deck:       deck,
		Mainboard:  []*models.DeckCard{},
		Sideboard:  []*models.DeckCard{},
		Unresolved: []*models.DeckCard{},
	}
	for _, card := range cards {
		switch card.Board {
		case models.BoardMainboard:
			out.Mainboard = append(out.Mainboard, card)
		case models.BoardSideboard:
			out.Sideboard = append(out.Sideboard, card)
		default:
			out.Unresolved = append(out.Unresolved, card)
		}
	}

	response.Success(w, out)
}

// DeleteDeck deletes a deck.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	if err := h.store.DeleteDeck(r.Context(), deckID); err != nil {
		if errors.Is(err, storage.ErrDeckNotFound) {
			response.NotFound(w, err)
			return
		}
		response.InternalError(w, err)
		return
	}

	h.events.DeckDeleted(deckID)
	response.NoContent(w)
}

// RefreshDeck re-fetches the stored printings of a deck from the catalog.
func (h *DeckHandler) RefreshDeck(w http.ResponseWriter, r *http.Request) {
	if h.printings == nil {
		response.ServiceUnavailable(w, errors.New("card catalog is not configured"))
		return
	}

	deckID := chi.URLParam(r, "deckID")

	report, err := h.store.RefreshDeck(r.Context(), deckID, h.printings)
	if errors.Is(err, storage.ErrDeckNotFound) {
		response.NotFound(w, err)
		return
	}
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("Failed to refresh deck", zap.String("deck_id", deckID), zap.Error(err))
		response.Error(w, http.StatusBadGateway, err)
		return
	}

	response.Success(w, report)
}

// ExportDeck renders a deck as text. Query parameters: format (arena,
// plaintext, mtgo, mtggoldfish), stats, headers and download. With
// download=true the text is sent as an attachment instead of JSON.
func (h *DeckHandler) ExportDeck(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	format, err := deckexport.ParseFormat(query.Get("format"))
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	options := &deckexport.ExportOptions{
		Format:         format,
		IncludeStats:   queryBool(query.Get("stats"), false),
		IncludeHeaders: queryBool(query.Get("headers"), true),
	}

	deck, cards, ok := h.loadDeck(w, r)
	if !ok {
		return
	}

	export, err := h.exporter.Export(deck, cards, options)
	if err != nil {
		response.InternalError(w, err)
		return
	}

	if queryBool(query.Get("download"), false) {
		response.Text(w, export.Content, export.Filename)
		return
	}

	response.Success(w, &ExportResponse{
		Content:  export.Content,
		Format:   export.Format,
		Filename: export.Filename,
	})
}

func (h *DeckHandler) loadDeck(w http.ResponseWriter, r *http.Request) (*models.Deck, []*models.DeckCard, bool) {
	deckID := chi.URLParam(r, "deckID")

	deck, cards, err := h.store.GetDeck(r.Context(), deckID)
	if errors.Is(err, storage.ErrDeckNotFound) {
		response.NotFound(w, err)
		return nil, nil, false
	}
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("Failed to load deck", zap.String("deck_id", deckID), zap.Error(err))
		response.InternalError(w, err)
		return nil, nil, false
	}

	return deck, cards, true
}

func queryBool(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

var _ DeckStore = (*storage.Service)(nil)
