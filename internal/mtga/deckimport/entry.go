package deckimport

import (
	"encoding/json"
	"strings"
)

// Section identifies which list of a deck an entry belongs to.
type Section string

const (
	SectionMainboard Section = "mainboard"
	SectionSideboard Section = "sideboard" // sideboard or commander zone
)

// UnresolvedCardEntry is one parsed card reference that has not yet been
// looked up in the catalog.
type UnresolvedCardEntry struct {
	Quantity        int    `json:"quantity"`
	Name            string `json:"name"`
	Set             string `json:"set,omitempty"`             // 3-4 character set code
	CollectorNumber string `json:"collectorNumber,omitempty"` // only meaningful together with Set
	IsFoil          bool   `json:"isFoil,omitempty"`
	IsCommander     bool   `json:"isCommander,omitempty"`
}

// HasPrinting reports whether the entry pins an exact printing.
func (e UnresolvedCardEntry) HasPrinting() bool {
	return e.Set != "" && e.CollectorNumber != ""
}

// ConsolidationKey returns the identity used to merge duplicate entries.
// Entries with a set are distinct per printing; entries without one merge
// by name alone.
func (e UnresolvedCardEntry) ConsolidationKey() string {
	if e.Set != "" {
		return e.Name + "|" + strings.ToUpper(e.Set) + "|" + e.CollectorNumber
	}
	return e.Name
}

// ResolvedCardEntry is an entry matched to a specific catalog printing.
// Name, Set and CollectorNumber of the embedded entry hold the canonical
// catalog values; Quantity, IsFoil and IsCommander come from the input.
type ResolvedCardEntry struct {
	UnresolvedCardEntry

	CatalogID               string          `json:"catalogId"`
	OfficialName            string          `json:"officialName"`
	OfficialSet             string          `json:"officialSet"`
	OfficialCollectorNumber string          `json:"officialCollectorNumber"`
	ImageURL                string          `json:"imageUrl,omitempty"`
	CatalogData             json.RawMessage `json:"catalogData,omitempty"`
}

// ParsedDeck is the consolidated, unresolved form of a deck list. It is
// also the response shape of the URL import proxy.
type ParsedDeck struct {
	Name      string                `json:"name,omitempty"`
	Mainboard []UnresolvedCardEntry `json:"mainboard"`
	Sideboard []UnresolvedCardEntry `json:"sideboard"`
	Errors    []string              `json:"errors,omitempty"`
}

// Result is the output of a complete import. Entries that could not be
// resolved are listed in Unresolved and never appear in either board.
type Result struct {
	Name       string                `json:"name,omitempty"`
	Mainboard  []ResolvedCardEntry   `json:"mainboard"`
	Sideboard  []ResolvedCardEntry   `json:"sideboard"`
	Errors     []string              `json:"errors"`
	Unresolved []UnresolvedCardEntry `json:"unresolved,omitempty"`
}

// TotalFailure reports whether nothing usable was imported: no mainboard
// entry resolved and at least one warning was recorded.
func (r *Result) TotalFailure() bool {
	return len(r.Mainboard) == 0 && len(r.Errors) > 0
}

// NothingResolved reports whether entries were read but none of them
// matched a printing on either board, as when every catalog request failed.
func (r *Result) NothingResolved() bool {
	return len(r.Mainboard) == 0 && len(r.Sideboard) == 0 && len(r.Unresolved) > 0
}

// Saveable reports whether the result is worth storing as a deck.
func (r *Result) Saveable() bool {
	return !r.TotalFailure() && !r.NothingResolved()
}

// CardCount returns the total number of copies across both boards.
func (r *Result) CardCount() int {
	n := 0
	for _, e := range r.Mainboard {
		n += e.Quantity
	}
	for _, e := range r.Sideboard {
		n += e.Quantity
	}
	return n
}

func newParsedDeck() *ParsedDeck {
	return &ParsedDeck{
		Mainboard: make([]UnresolvedCardEntry, 0),
		Sideboard: make([]UnresolvedCardEntry, 0),
		Errors:    make([]string, 0),
	}
}
