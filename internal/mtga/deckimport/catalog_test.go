package deckimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/cards/scryfall"
)

// fakeCatalog answers batch lookups from an in-memory card list. Data is
// returned in reverse request order to mimic the unordered API response.
type fakeCatalog struct {
	mu      sync.Mutex
	records []scryfall.Record
	calls   [][]scryfall.CardIdentifier
	failOn  map[int]error // 1-based call number
}

func newFakeCatalog(records ...scryfall.Record) *fakeCatalog {
	return &fakeCatalog{records: records, failOn: make(map[int]error)}
}

func (f *fakeCatalog) Collection(_ context.Context, ids []scryfall.CardIdentifier) (*scryfall.CollectionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]scryfall.CardIdentifier(nil), ids...))
	if err, ok := f.failOn[len(f.calls)]; ok {
		return nil, err
	}

	resp := &scryfall.CollectionResponse{Object: "list"}
	for _, id := range ids {
		rec, ok := f.lookup(id)
		if !ok {
			resp.NotFound = append(resp.NotFound, id)
			continue
		}
		resp.Data = append([]scryfall.Record{rec}, resp.Data...)
	}
	return resp, nil
}

func (f *fakeCatalog) lookup(id scryfall.CardIdentifier) (scryfall.Record, bool) {
	for _, rec := range f.records {
		switch {
		case id.CollectorNumber != "":
			if strings.EqualFold(id.Set, rec.SetCode) && id.CollectorNumber == rec.CollectorNumber {
				return rec, true
			}
		case id.Set != "":
			if nameMatches(id.Name, &rec) && strings.EqualFold(id.Set, rec.SetCode) {
				return rec, true
			}
		default:
			if nameMatches(id.Name, &rec) {
				return rec, true
			}
		}
	}
	return scryfall.Record{}, false
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errCatalogDown = errors.New("catalog unavailable")

// record builds a catalog record the way the client decodes one, so Raw is
// populated. faces are optional card face names.
func record(id, name, set, cn string, faces ...string) scryfall.Record {
	doc := map[string]any{
		"object":           "card",
		"id":               id,
		"name":             name,
		"set":              set,
		"collector_number": cn,
		"image_uris":       map[string]string{"normal": "https://img.example/" + id + ".jpg"},
	}
	if len(faces) > 0 {
		list := make([]map[string]string, len(faces))
		for i, face := range faces {
			list[i] = map[string]string{"name": face}
		}
		doc["card_faces"] = list
	}

	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	var rec scryfall.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		panic(err)
	}
	return rec
}

// numberedCards returns n distinct records and matching name-only entries.
func numberedCards(n int) ([]scryfall.Record, []UnresolvedCardEntry) {
	records := make([]scryfall.Record, n)
	entries := make([]UnresolvedCardEntry, n)
	for i := range n {
		name := fmt.Sprintf("Test Card %03d", i+1)
		records[i] = record(fmt.Sprintf("id-%03d", i+1), name, "tst", fmt.Sprint(i+1))
		entries[i] = UnresolvedCardEntry{Quantity: 1, Name: name}
	}
	return records, entries
}
