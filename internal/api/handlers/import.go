package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/api/response"
	"github.com/forgemaster-mtg/mtglibrary/internal/api/websocket"
	"github.com/forgemaster-mtg/mtglibrary/internal/logging"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/decksource"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
)

// maxImportBody caps the size of import request bodies.
const maxImportBody = 1 << 20

// DeckFetcher fetches unresolved decks from deck-building sites.
// *decksource.Service satisfies it.
type DeckFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*deckimport.ParsedDeck, error)
}

// ImportSaver persists import results. *storage.Service satisfies it.
type ImportSaver interface {
	SaveImport(ctx context.Context, name, source, sourceURL string, result *deckimport.Result) (*models.Deck, error)
}

// ImportHandler handles deck import API requests.
type ImportHandler struct {
	importer *deckimport.Importer
	sources  DeckFetcher
	store    ImportSaver
	events   *websocket.ImportObserver
	logger   *zap.Logger
}

// NewImportHandler creates a new ImportHandler. sources, store and events
// may be nil; the endpoints that need them then report 503.
func NewImportHandler(importer *deckimport.Importer, sources DeckFetcher, store ImportSaver, events *websocket.ImportObserver, logger *zap.Logger) *ImportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandler{
		importer: importer,
		sources:  sources,
		store:    store,
		events:   events,
		logger:   logger,
	}
}

// ParseRequest represents a request to parse deck text.
type ParseRequest struct {
	Content string `json:"content"`
}

// ImportTextRequest represents a request to import deck text.
type ImportTextRequest struct {
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
	Save    bool   `json:"save,omitempty"`
}

// ImportURLRequest represents a request to import a deck from a URL.
type ImportURLRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Save bool   `json:"save,omitempty"`
}

// ImportResponse is the result of a full import.
type ImportResponse struct {
	ImportID        string             `json:"importId"`
	DeckID          string             `json:"deckId,omitempty"`
	TotalFailure    bool               `json:"totalFailure"`
	NothingResolved bool               `json:"nothingResolved"` // cards read, none matched; never saved
	CardCount       int                `json:"cardCount"`
	Result          *deckimport.Result `json:"result"`
}

// Parse parses and consolidates deck text without resolving it.
func (h *ImportHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	response.Success(w, h.importer.Parse(req.Content))
}

// ImportText runs the full pipeline over deck text.
func (h *ImportHandler) ImportText(w http.ResponseWriter, r *http.Request) {
	var req ImportTextRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if req.Save && h.store == nil {
		response.ServiceUnavailable(w, errors.New("deck storage is not available"))
		return
	}

	importID := uuid.NewString()
	result := h.importer.WithProgress(h.events.Progress(importID)).ImportText(r.Context(), req.Content)

	h.finish(w, r, importID, req.Name, models.SourceText, "", req.Save, result)
}

// ImportFromURL runs the full pipeline over a deck fetched through the
// URL import proxy.
func (h *ImportHandler) ImportFromURL(w http.ResponseWriter, r *http.Request) {
	var req ImportURLRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		response.BadRequest(w, errors.New("url is required"))
		return
	}
	if req.Save && h.store == nil {
		response.ServiceUnavailable(w, errors.New("deck storage is not available"))
		return
	}

	importID := uuid.NewString()
	result := h.importer.WithProgress(h.events.Progress(importID)).ImportURL(r.Context(), req.URL)

	h.finish(w, r, importID, req.Name, models.SourceURL, req.URL, req.Save, result)
}

// finish saves a usable result when asked to, announces completion and
// writes the response. Imports with no resolved card are never saved.
func (h *ImportHandler) finish(w http.ResponseWriter, r *http.Request, importID, name, source, sourceURL string, save bool, result *deckimport.Result) {
	logger := logging.FromContext(r.Context(), h.logger).With(zap.String("import_id", importID))

	resp := &ImportResponse{
		ImportID:     importID,
		TotalFailure:    result.TotalFailure(),
		NothingResolved: result.NothingResolved(),
		CardCount:       result.CardCount(),
		Result:          result,
	}

	if save && !result.Saveable() {
		logger.Warn("Import not saved; no card resolved",
			zap.Int("unresolved", len(result.Unresolved)),
			zap.Int("warnings", len(result.Errors)))
	}
	if save && result.Saveable() {
		deck, err := h.store.SaveImport(r.Context(), name, source, sourceURL, result)
		if err != nil {
			logger.Error("Failed to save imported deck", zap.Error(err))
			response.InternalError(w, err)
			return
		}
		resp.DeckID = deck.ID
		logger.Info("Imported deck saved", zap.String("deck_id", deck.ID), zap.Int("cards", resp.CardCount))
	}

	h.events.Complete(importID, resp.DeckID, result)

	if resp.DeckID != "" {
		response.Created(w, resp)
		return
	}
	response.Success(w, resp)
}

// ProxyURL is the URL import proxy. It answers with a bare unresolved deck
// or a bare {"error": ...} payload, the shape deckimport.URLImporter reads.
func (h *ImportHandler) ProxyURL(w http.ResponseWriter, r *http.Request) {
	if h.sources == nil {
		response.ProxyError(w, http.StatusServiceUnavailable, "URL import is not available")
		return
	}

	var req deckimport.URLImportRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.ProxyError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		response.ProxyError(w, http.StatusBadRequest, "url is required")
		return
	}

	deck, err := h.sources.Fetch(r.Context(), req.URL)
	if err != nil {
		status, message := proxyFailure(err)
		logging.FromContext(r.Context(), h.logger).Warn("Deck source fetch failed",
			zap.String("url", req.URL), zap.Int("status", status), zap.Error(err))
		response.ProxyError(w, status, message)
		return
	}

	response.JSON(w, http.StatusOK, deck)
}

// proxyFailure maps a fetch error to a status and a user-facing message.
func proxyFailure(err error) (int, string) {
	var upstream *decksource.UpstreamError
	switch {
	case errors.Is(err, decksource.ErrUnsupportedURL):
		return http.StatusBadRequest, "Unsupported or invalid deck URL"
	case errors.Is(err, decksource.ErrNoDeckList):
		return http.StatusUnprocessableEntity, "No deck list found at URL"
	case errors.As(err, &upstream):
		return http.StatusBadGateway, upstream.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timed out fetching URL"
	default:
		return http.StatusBadGateway, "Failed to fetch URL"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

var (
	_ DeckFetcher = (*decksource.Service)(nil)
	_ ImportSaver = (*storage.Service)(nil)
)
