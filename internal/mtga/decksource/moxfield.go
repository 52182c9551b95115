package decksource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
)

// "/decks/VZk4x1Ab" with an optional trailing path.
var moxfieldPathRegex = regexp.MustCompile(`^/decks/([^/?#]+)`)

type moxfield struct {
	svc     *Service
	apiBase string
}

// moxfieldDeck is the subset of the v2 "all" deck payload that is read.
// Boards are objects keyed by card name.
type moxfieldDeck struct {
	Name       string                   `json:"name"`
	Mainboard  map[string]moxfieldEntry `json:"mainboard"`
	Sideboard  map[string]moxfieldEntry `json:"sideboard"`
	Commanders map[string]moxfieldEntry `json:"commanders"`
}

type moxfieldEntry struct {
	Quantity int    `json:"quantity"`
	Finish   string `json:"finish"`
	Card     struct {
		Name string `json:"name"`
		Set  string `json:"set"`
		CN   string `json:"cn"`
	} `json:"card"`
}

func (m *moxfield) name() string { return "moxfield" }

func (m *moxfield) match(u *url.URL) bool {
	return hostIs(u.Host, "moxfield.com")
}

func (m *moxfield) fetch(ctx context.Context, u *url.URL) (*deckimport.ParsedDeck, error) {
	match := moxfieldPathRegex.FindStringSubmatch(u.Path)
	if match == nil {
		return nil, fmt.Errorf("%w: invalid Moxfield deck URL %q", ErrUnsupportedURL, u.String())
	}

	body, _, err := m.svc.get(ctx, m.name(), m.apiBase+"/v2/decks/all/"+url.PathEscape(match[1]), "application/json")
	if err != nil {
		return nil, err
	}

	var data moxfieldDeck
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse Moxfield response: %w", err)
	}

	deck := &deckimport.ParsedDeck{
		Name:      data.Name,
		Mainboard: moxfieldEntries(data.Mainboard, false),
		Sideboard: moxfieldEntries(data.Sideboard, false),
	}
	deck.Sideboard = append(deck.Sideboard, moxfieldEntries(data.Commanders, true)...)

	return deck, nil
}

// moxfieldEntries converts a board map into entries sorted by name.
func moxfieldEntries(board map[string]moxfieldEntry, commander bool) []deckimport.UnresolvedCardEntry {
	entries := make([]deckimport.UnresolvedCardEntry, 0, len(board))
	for key, e := range board {
		name := e.Card.Name
		if name == "" {
			name = key
		}
		entries = append(entries, deckimport.UnresolvedCardEntry{
			Quantity:        e.Quantity,
			Name:            name,
			Set:             e.Card.Set,
			CollectorNumber: e.Card.CN,
			IsFoil:          e.Finish == "foil",
			IsCommander:     commander,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}
