package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/cards/scryfall"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
)

// importDeck saves content through the import endpoint and returns the deck id.
func importDeck(t *testing.T, env *testEnv, name, content string) string {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/import/text", ImportTextRequest{Content: content, Name: name, Save: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp ImportResponse
	decodeData(t, rec, &resp)
	require.NotEmpty(t, resp.DeckID)
	return resp.DeckID
}

func TestDeckHandler_GetDecks(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/decks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data": []}`, rec.Body.String())

	importDeck(t, env, "Burn", "4 Lightning Bolt")
	importDeck(t, env, "Tempo", "4 Opt\n2 Negate")

	rec = env.do(t, http.MethodGet, "/decks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var decks []*models.Deck
	decodeData(t, rec, &decks)
	require.Len(t, decks, 2)

	counts := map[string]int{}
	for _, d := range decks {
		counts[d.Name] = d.CardCount
	}
	assert.Equal(t, map[string]int{"Burn": 4, "Tempo": 6}, counts)
}

func TestDeckHandler_GetDeck(t *testing.T) {
	env := newTestEnv(t)
	id := importDeck(t, env, "Tempo", "4 Opt (XLN) 65\n1 Made Up Card\nSideboard\n2 Negate *F*")

	rec := env.do(t, http.MethodGet, "/decks/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var deck DeckWithCards
	decodeData(t, rec, &deck)
	assert.Equal(t, id, deck.ID)
	assert.Equal(t, "Tempo", deck.Name)

	require.Len(t, deck.Mainboard, 1)
	assert.Equal(t, "Opt", deck.Mainboard[0].Name)
	assert.Equal(t, 4, deck.Mainboard[0].Quantity)
	assert.True(t, deck.Mainboard[0].IsResolved())

	require.Len(t, deck.Sideboard, 1)
	assert.True(t, deck.Sideboard[0].IsFoil)

	require.Len(t, deck.Unresolved, 1)
	assert.Equal(t, "Made Up Card", deck.Unresolved[0].Name)
	assert.False(t, deck.Unresolved[0].IsResolved())
}

func TestDeckHandler_GetDeckNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/decks/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeckHandler_DeleteDeck(t *testing.T) {
	env := newTestEnv(t)
	id := importDeck(t, env, "Burn", "4 Lightning Bolt")

	rec := env.do(t, http.MethodDelete, "/decks/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	decks, err := env.store.ListDecks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, decks)

	rec = env.do(t, http.MethodDelete, "/decks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeckHandler_ExportDeck(t *testing.T) {
	env := newTestEnv(t)
	id := importDeck(t, env, "Tempo", "4 Opt\nSideboard\n2 Negate")

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "default arena", query: "", want: "Deck\n4 Opt (XLN) 65\n\nSideboard\n2 Negate (M20) 69\n"},
		{name: "mtgo", query: "?format=mtgo", want: "4 Opt\n\nSB: 2 Negate\n"},
		{name: "arena without headers", query: "?format=arena&headers=false", want: "4 Opt (XLN) 65\n\n2 Negate (M20) 69\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/decks/"+id+"/export"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var export ExportResponse
			decodeData(t, rec, &export)
			assert.Equal(t, tt.want, export.Content)
			assert.NotEmpty(t, export.Filename)
		})
	}
}

func TestDeckHandler_ExportDownload(t *testing.T) {
	env := newTestEnv(t)
	id := importDeck(t, env, "Burn", "4 Lightning Bolt")

	rec := env.do(t, http.MethodGet, "/decks/"+id+"/export?format=mtgo&download=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "4 Lightning Bolt\n", rec.Body.String())
}

func TestDeckHandler_ExportErrors(t *testing.T) {
	env := newTestEnv(t)
	id := importDeck(t, env, "Burn", "4 Lightning Bolt")

	rec := env.do(t, http.MethodGet, "/decks/"+id+"/export?format=csv", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/decks/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeckHandler_RefreshDeck(t *testing.T) {
	env := newTestEnv(t)
	id := importDeck(t, env, "Tempo", "4 Opt (XLN) 65\nSideboard\n2 Negate")

	// The Opt printing was reissued under a new catalog id.
	var reissued scryfall.Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": "opt-xln-v2", "name": "Opt", "set": "xln", "collector_number": "65", "image_uris": {"normal": "https://img.example/opt.jpg"}}`), &reissued))
	env.catalog.records[0] = reissued

	rec := env.do(t, http.MethodPost, "/decks/"+id+"/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report storage.RefreshReport
	decodeData(t, rec, &report)
	assert.Equal(t, 2, report.Refreshed)
	assert.Empty(t, report.Missing)
	require.NotNil(t, report.Deck)
	assert.Equal(t, 6, report.Deck.CardCount)

	rec = env.do(t, http.MethodGet, "/decks/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var deck DeckWithCards
	decodeData(t, rec, &deck)
	require.Len(t, deck.Mainboard, 1)
	require.NotNil(t, deck.Mainboard[0].CatalogID)
	assert.Equal(t, "opt-xln-v2", *deck.Mainboard[0].CatalogID)
	require.NotNil(t, deck.Mainboard[0].ImageURL)
	assert.Equal(t, "https://img.example/opt.jpg", *deck.Mainboard[0].ImageURL)
}

func TestDeckHandler_RefreshDeckMissingPrintings(t *testing.T) {
	env := newTestEnv(t)
	id := importDeck(t, env, "Burn", "4 Lightning Bolt")

	env.catalog.records = nil

	rec := env.do(t, http.MethodPost, "/decks/"+id+"/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report storage.RefreshReport
	decodeData(t, rec, &report)
	assert.Equal(t, 0, report.Refreshed)
	assert.Equal(t, []string{"Lightning Bolt"}, report.Missing)
}

func TestDeckHandler_RefreshDeckErrors(t *testing.T) {
	env := newTestEnv(t)
	id := importDeck(t, env, "Burn", "4 Lightning Bolt")

	rec := env.do(t, http.MethodPost, "/decks/missing/refresh", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.catalog.err = errors.New("connection refused")
	rec = env.do(t, http.MethodPost, "/decks/"+id+"/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	h := NewDeckHandler(env.store, nil, nil, nil, zaptest.NewLogger(t))
	rec = httptest.NewRecorder()
	h.RefreshDeck(rec, httptest.NewRequest(http.MethodPost, "/decks/"+id+"/refresh", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
