package models

import (
	"encoding/json"
	"time"
)

// Deck sources.
const (
	SourceText = "text" // pasted deck list
	SourceURL  = "url"  // fetched from a deck site
	SourceFile = "file" // picked up from the inbox directory
)

// Boards a stored card can belong to. Unresolved rows keep the entries the
// catalog could not match so an import can be reviewed later.
const (
	BoardMainboard  = "mainboard"
	BoardSideboard  = "sideboard"
	BoardUnresolved = "unresolved"
)

// Deck represents an imported deck list.
type Deck struct {
	ID           string
	Name         string
	Source       string   // "text", "url", or "file"
	SourceURL    *string  // Nullable
	ImportErrors []string // Parse and fetch warnings recorded at import
	CardCount    int      // Copies across mainboard and sideboard; populated by reads
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// DeckCard represents one entry of a stored deck.
type DeckCard struct {
	ID              int64
	DeckID          string
	Board           string // "mainboard", "sideboard", or "unresolved"
	Position        int    // Order within the board
	Quantity        int
	Name            string
	SetCode         string
	CollectorNumber string
	CatalogID       *string // Nullable for unresolved rows
	ImageURL        *string // Nullable
	IsFoil          bool
	IsCommander     bool
	CatalogData     json.RawMessage // Opaque catalog record; nil for unresolved rows
}

// IsResolved reports whether the card was matched to a catalog printing.
func (c *DeckCard) IsResolved() bool {
	return c.CatalogID != nil && *c.CatalogID != ""
}
