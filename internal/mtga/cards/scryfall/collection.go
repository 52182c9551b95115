package scryfall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// MaxBatchSize is the maximum number of identifiers per /cards/collection request.
const MaxBatchSize = 75

// CardIdentifier represents a card identifier for the /cards/collection endpoint.
// Valid combinations are {id}, {name}, {name, set} and {set, collector_number}.
type CardIdentifier struct {
	ID              string `json:"id,omitempty"`               // Scryfall ID
	Name            string `json:"name,omitempty"`             // Card name
	Set             string `json:"set,omitempty"`              // Set code
	CollectorNumber string `json:"collector_number,omitempty"` // Collector number (requires set)
}

// String renders the identifier for logs.
func (id CardIdentifier) String() string {
	switch {
	case id.ID != "":
		return id.ID
	case id.Set != "" && id.CollectorNumber != "":
		return fmt.Sprintf("%s#%s", id.Set, id.CollectorNumber)
	case id.Set != "":
		return fmt.Sprintf("%s (%s)", id.Name, id.Set)
	default:
		return id.Name
	}
}

// CollectionRequest is the request body for /cards/collection.
type CollectionRequest struct {
	Identifiers []CardIdentifier `json:"identifiers"`
}

// CollectionResponse is the response from /cards/collection.
// Data is in no particular order relative to the request identifiers.
type CollectionResponse struct {
	Object   string           `json:"object"`
	NotFound []CardIdentifier `json:"not_found"`
	Data     []Record         `json:"data"`
}

// Collection performs a single /cards/collection lookup.
// At most MaxBatchSize identifiers may be requested at once; callers are
// responsible for chunking.
func (c *Client) Collection(ctx context.Context, identifiers []CardIdentifier) (*CollectionResponse, error) {
	if len(identifiers) == 0 {
		return &CollectionResponse{Object: "list"}, nil
	}
	if len(identifiers) > MaxBatchSize {
		return nil, fmt.Errorf("too many identifiers: %d (max %d)", len(identifiers), MaxBatchSize)
	}

	body, err := json.Marshal(CollectionRequest{Identifiers: identifiers})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp CollectionResponse
	if err := c.do(ctx, http.MethodPost, "/cards/collection", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch cards from Scryfall: %w", err)
	}

	return &resp, nil
}
