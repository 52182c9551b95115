package websocket

import (
	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
)

// ImportProgressData is the payload of an import:progress event.
type ImportProgressData struct {
	ImportID string `json:"importId"`
	deckimport.Progress
}

// ImportCompleteData is the payload of an import:complete event.
type ImportCompleteData struct {
	ImportID     string `json:"importId"`
	DeckID       string `json:"deckId,omitempty"`
	Name         string `json:"name,omitempty"`
	Mainboard    int    `json:"mainboard"`
	Sideboard    int    `json:"sideboard"`
	Unresolved   int    `json:"unresolved"`
	Warnings     int    `json:"warnings"`
	CardCount    int    `json:"cardCount"`
	TotalFailure bool   `json:"totalFailure"`
}

// ImportObserver publishes import pipeline events to WebSocket clients.
// A nil observer, or one without a hub, drops every event.
type ImportObserver struct {
	hub    *Hub
	logger *zap.Logger
}

// NewImportObserver creates an observer that broadcasts through hub.
func NewImportObserver(hub *Hub, logger *zap.Logger) *ImportObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportObserver{hub: hub, logger: logger}
}

// Progress returns a progress callback that broadcasts one event per
// resolved chunk of the import identified by importID.
func (o *ImportObserver) Progress(importID string) deckimport.ProgressFunc {
	if o == nil || o.hub == nil {
		return nil
	}
	return func(p deckimport.Progress) {
		o.publish(EventImportProgress, ImportProgressData{ImportID: importID, Progress: p})
	}
}

// Complete broadcasts the summary of a finished import. deckID is empty
// when the result was not saved.
func (o *ImportObserver) Complete(importID, deckID string, result *deckimport.Result) {
	if o == nil || o.hub == nil || result == nil {
		return
	}
	o.publish(EventImportComplete, ImportCompleteData{
		ImportID:     importID,
		DeckID:       deckID,
		Name:         result.Name,
		Mainboard:    len(result.Mainboard),
		Sideboard:    len(result.Sideboard),
		Unresolved:   len(result.Unresolved),
		Warnings:     len(result.Errors),
		CardCount:    result.CardCount(),
		TotalFailure: result.TotalFailure(),
	})
}

// DeckDeleted broadcasts the removal of a stored deck.
func (o *ImportObserver) DeckDeleted(deckID string) {
	if o == nil || o.hub == nil {
		return
	}
	o.publish(EventDeckDeleted, map[string]string{"deckId": deckID})
}

func (o *ImportObserver) publish(eventType string, data interface{}) {
	if !o.hub.BroadcastEvent(Event{Type: eventType, Data: data}) {
		o.logger.Debug("Dropped event, hub stopped", zap.String("type", eventType))
	}
}
