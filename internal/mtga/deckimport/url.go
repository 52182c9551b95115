package deckimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	urlImportTimeout = 30 * time.Second

	// errFetchURL is reported when the proxy gives no message of its own.
	errFetchURL = "Failed to fetch URL"
)

// URLImportRequest is the body sent to the import proxy.
type URLImportRequest struct {
	URL string `json:"url"`
}

// urlImportResponse is the proxy's reply: a ParsedDeck or an error payload.
type urlImportResponse struct {
	ParsedDeck
	Error string `json:"error,omitempty"`
}

// URLImporter delegates decklist URLs to the import proxy, which does its
// own fetching and parsing.
type URLImporter struct {
	proxyURL   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewURLImporter creates a URLImporter for the proxy endpoint at proxyURL.
func NewURLImporter(proxyURL string, httpClient *http.Client, logger *zap.Logger) *URLImporter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: urlImportTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLImporter{
		proxyURL:   proxyURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Import asks the proxy for the deck at sourceURL. It never returns an
// error: transport and proxy failures yield an empty deck whose Errors
// holds a single message.
func (u *URLImporter) Import(ctx context.Context, sourceURL string) *ParsedDeck {
	deck, err := u.fetch(ctx, sourceURL)
	if err != nil {
		u.logger.Error("URL import failed", zap.String("url", sourceURL), zap.Error(err))

		failed := newParsedDeck()
		failed.Errors = append(failed.Errors, proxyMessage(err))
		return failed
	}
	return deck
}

// proxyError carries the message the proxy put in its error payload.
type proxyError struct {
	status  int
	message string
}

func (e *proxyError) Error() string {
	return fmt.Sprintf("proxy returned status %d: %s", e.status, e.message)
}

func proxyMessage(err error) string {
	var pe *proxyError
	if errors.As(err, &pe) && pe.message != "" {
		return pe.message
	}
	return errFetchURL
}

func (u *URLImporter) fetch(ctx context.Context, sourceURL string) (*ParsedDeck, error) {
	body, err := json.Marshal(URLImportRequest{URL: sourceURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.proxyURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy response: %w", err)
	}

	var payload urlImportResponse
	decodeErr := json.Unmarshal(data, &payload)

	if resp.StatusCode != http.StatusOK || payload.Error != "" {
		msg := payload.Error
		if decodeErr != nil {
			msg = ""
		}
		return nil, &proxyError{status: resp.StatusCode, message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse proxy response: %w", decodeErr)
	}

	deck := newParsedDeck()
	deck.Name = payload.Name
	deck.Mainboard = u.validEntries(payload.Mainboard, deck)
	deck.Sideboard = u.validEntries(payload.Sideboard, deck)
	deck.Errors = append(deck.Errors, payload.Errors...)

	return deck, nil
}

// validEntries drops proxy entries that break the entry invariants.
func (u *URLImporter) validEntries(entries []UnresolvedCardEntry, deck *ParsedDeck) []UnresolvedCardEntry {
	valid := make([]UnresolvedCardEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Quantity < 1 {
			deck.Errors = append(deck.Errors, fmt.Sprintf("Skipped invalid entry: %q x%d", e.Name, e.Quantity))
			continue
		}
		if e.Set == "" {
			e.CollectorNumber = ""
		}
		valid = append(valid, e)
	}
	return valid
}
