package scryfall

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Card is the typed projection of a Scryfall card object. Only the fields
// the importer reads are modelled; the full object is kept by Record.
type Card struct {
	ID       string `json:"id"`
	OracleID string `json:"oracle_id,omitempty"`
	ArenaID  *int   `json:"arena_id,omitempty"`

	Name      string     `json:"name"`
	Lang      string     `json:"lang,omitempty"`
	Layout    string     `json:"layout,omitempty"`
	ImageURIs *ImageURIs `json:"image_uris,omitempty"`
	ManaCost  string     `json:"mana_cost,omitempty"`
	CMC       float64    `json:"cmc"`
	TypeLine  string     `json:"type_line,omitempty"`

	SetCode         string `json:"set"`
	SetName         string `json:"set_name,omitempty"`
	CollectorNumber string `json:"collector_number"`
	Rarity          string `json:"rarity,omitempty"`

	// Card faces (for DFCs, MDFCs, split cards)
	CardFaces []CardFace `json:"card_faces,omitempty"`
}

// CardFace represents one face of a multi-faced card.
type CardFace struct {
	Name      string     `json:"name"`
	ManaCost  string     `json:"mana_cost,omitempty"`
	TypeLine  string     `json:"type_line,omitempty"`
	ImageURIs *ImageURIs `json:"image_uris,omitempty"`
}

// ImageURIs contains URLs for card images in various sizes.
type ImageURIs struct {
	Small      string `json:"small"`
	Normal     string `json:"normal"`
	Large      string `json:"large"`
	PNG        string `json:"png"`
	ArtCrop    string `json:"art_crop"`
	BorderCrop string `json:"border_crop"`
}

// FrontFaceName returns the name of the first face, or "" for single-faced cards.
func (c *Card) FrontFaceName() string {
	if len(c.CardFaces) == 0 {
		return ""
	}
	return c.CardFaces[0].Name
}

// ImageURL returns the normal-size image, falling back to the front face
// for cards whose images live on their faces. Returns "" when there is none.
func (c *Card) ImageURL() string {
	if c.ImageURIs != nil && c.ImageURIs.Normal != "" {
		return c.ImageURIs.Normal
	}
	if len(c.CardFaces) > 0 && c.CardFaces[0].ImageURIs != nil {
		return c.CardFaces[0].ImageURIs.Normal
	}
	return ""
}

// Record is a card object as returned by the API. Raw holds the complete
// JSON document, whose shape varies by card layout; Card is decoded from it.
type Record struct {
	Card
	Raw json.RawMessage
}

// UnmarshalJSON keeps a copy of the raw document alongside the projection.
func (r *Record) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.Card); err != nil {
		return err
	}
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the raw document when present.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(r.Card)
}

// APIError represents an error response from the Scryfall API.
type APIError struct {
	Object   string   `json:"object"`
	Code     string   `json:"code"`
	Status   int      `json:"status"`
	Details  string   `json:"details"`
	Type     string   `json:"type,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Details)
	}
	return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Code)
}

// NotFoundError represents a 404 error from the API.
type NotFoundError struct {
	URL string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// IsNotFound returns true if the error is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
