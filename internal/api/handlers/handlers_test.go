package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/cards/scryfall"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckexport"
	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage"
)

// stubCatalog matches identifiers by name or by printing against a fixed
// card list. It serves single-printing lookups from the same list.
type stubCatalog struct {
	records []scryfall.Record
	err     error
}

func newStubCatalog(t *testing.T) *stubCatalog {
	t.Helper()

	docs := []string{
		`{"id": "opt-xln", "name": "Opt", "set": "xln", "collector_number": "65"}`,
		`{"id": "bolt-m11", "name": "Lightning Bolt", "set": "m11", "collector_number": "149"}`,
		`{"id": "negate-m20", "name": "Negate", "set": "m20", "collector_number": "69"}`,
	}
	c := &stubCatalog{}
	for _, doc := range docs {
		var rec scryfall.Record
		require.NoError(t, json.Unmarshal([]byte(doc), &rec))
		c.records = append(c.records, rec)
	}
	return c
}

func (c *stubCatalog) Collection(_ context.Context, ids []scryfall.CardIdentifier) (*scryfall.CollectionResponse, error) {
	resp := &scryfall.CollectionResponse{Object: "list"}
	for _, id := range ids {
		found := false
		for _, rec := range c.records {
			byPrinting := id.CollectorNumber != "" && strings.EqualFold(id.Set, rec.SetCode) && id.CollectorNumber == rec.CollectorNumber
			byName := id.CollectorNumber == "" && strings.EqualFold(id.Name, rec.Name)
			if byPrinting || byName {
				resp.Data = append(resp.Data, rec)
				found = true
				break
			}
		}
		if !found {
			resp.NotFound = append(resp.NotFound, id)
		}
	}
	return resp, nil
}

func (c *stubCatalog) GetCard(_ context.Context, id string) (*scryfall.Record, error) {
	if c.err != nil {
		return nil, c.err
	}
	for i := range c.records {
		if c.records[i].ID == id {
			rec := c.records[i]
			return &rec, nil
		}
	}
	return nil, &scryfall.NotFoundError{URL: "/cards/" + id}
}

func (c *stubCatalog) GetCardBySetNumber(_ context.Context, set, number string) (*scryfall.Record, error) {
	if c.err != nil {
		return nil, c.err
	}
	for i := range c.records {
		if strings.EqualFold(c.records[i].SetCode, set) && c.records[i].CollectorNumber == number {
			rec := c.records[i]
			return &rec, nil
		}
	}
	return nil, &scryfall.NotFoundError{URL: "/cards/" + set + "/" + number}
}

// stubFetcher returns a fixed deck or error for every URL.
type stubFetcher struct {
	deck *deckimport.ParsedDeck
	err  error
	urls []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (*deckimport.ParsedDeck, error) {
	f.urls = append(f.urls, rawURL)
	return f.deck, f.err
}

type testEnv struct {
	router  chi.Router
	store   *storage.Service
	catalog *stubCatalog
	fetcher *stubFetcher
}

// newTestEnv wires both handlers over a real migrated store. The importer's
// URL importer calls the proxy route of the same router.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	env := &testEnv{
		store:   storage.NewTestService(t),
		catalog: newStubCatalog(t),
		fetcher: &stubFetcher{},
	}

	router := chi.NewRouter()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	resolver := deckimport.NewResolver(env.catalog, deckimport.WithLogger(logger))
	urls := deckimport.NewURLImporter(server.URL+"/import/url", server.Client(), logger)
	importer := deckimport.NewImporter(resolver, urls, logger)

	imports := NewImportHandler(importer, env.fetcher, env.store, nil, logger)
	decks := NewDeckHandler(env.store, env.catalog, deckexport.NewExporter(), nil, logger)

	router.Post("/import/parse", imports.Parse)
	router.Post("/import/text", imports.ImportText)
	router.Post("/import/url", imports.ProxyURL)
	router.Post("/import/from-url", imports.ImportFromURL)
	router.Get("/decks", decks.GetDecks)
	router.Get("/decks/{deckID}", decks.GetDeck)
	router.Delete("/decks/{deckID}", decks.DeleteDeck)
	router.Get("/decks/{deckID}/export", decks.ExportDeck)
	router.Post("/decks/{deckID}/refresh", decks.RefreshDeck)

	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps the {"data": ...} envelope into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}
