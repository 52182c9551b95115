package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgemaster-mtg/mtglibrary/internal/api/handlers"
	"github.com/forgemaster-mtg/mtglibrary/internal/api/response"
	"github.com/forgemaster-mtg/mtglibrary/internal/api/websocket"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/health", s.healthCheck)

	s.router.Get("/ws", s.wsHub.ServeWs)

	events := websocket.NewImportObserver(s.wsHub, s.logger.Named("events"))

	// Interface fields must stay nil rather than hold a typed nil pointer.
	var store handlers.ImportSaver
	var decks handlers.DeckStore
	if s.services.Storage != nil {
		store = s.services.Storage
		decks = s.services.Storage
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.services.Importer != nil {
			importHandler := handlers.NewImportHandler(s.services.Importer, s.services.Sources, store, events, s.logger.Named("import"))
			r.Route("/import", func(r chi.Router) {
				r.Post("/parse", importHandler.Parse)
				r.Post("/text", importHandler.ImportText)
				r.Post("/url", importHandler.ProxyURL) // URL import proxy
				r.Post("/from-url", importHandler.ImportFromURL)
			})
		}

		if decks != nil {
			// Interface field; same typed-nil rule as above.
			var printings storage.PrintingLookup
			if s.services.Printings != nil {
				printings = s.services.Printings
			}
			deckHandler := handlers.NewDeckHandler(decks, printings, s.services.Exporter, events, s.logger.Named("decks"))
			r.Route("/decks", func(r chi.Router) {
				r.Get("/", deckHandler.GetDecks)
				r.Get("/{deckID}", deckHandler.GetDeck)
				r.Delete("/{deckID}", deckHandler.DeleteDeck)
				r.Get("/{deckID}/export", deckHandler.ExportDeck)
				r.Post("/{deckID}/refresh", deckHandler.RefreshDeck)
			})
		}
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]interface{}{
		"status":  "healthy",
		"storage": s.services.Storage != nil,
		"sources": s.services.Sources != nil,
		"clients": s.wsHub.ClientCount(),
	})
}
