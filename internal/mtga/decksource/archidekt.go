package decksource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"slices"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
)

// "/decks/123456" or "/decks/123456/deck-name".
var archidektPathRegex = regexp.MustCompile(`^/decks/(\d+)`)

type archidekt struct {
	svc     *Service
	apiBase string
}

type archidektDeck struct {
	Name  string          `json:"name"`
	Cards []archidektCard `json:"cards"`
}

type archidektCard struct {
	Quantity   int      `json:"quantity"`
	Modifier   string   `json:"modifier"`
	Categories []string `json:"categories"`
	Card       struct {
		CollectorNumber string `json:"collectorNumber"`
		OracleCard      struct {
			Name string `json:"name"`
		} `json:"oracleCard"`
		Edition struct {
			EditionCode string `json:"editionCode"`
		} `json:"edition"`
	} `json:"card"`
}

func (a *archidekt) name() string { return "archidekt" }

func (a *archidekt) match(u *url.URL) bool {
	return hostIs(u.Host, "archidekt.com")
}

func (a *archidekt) fetch(ctx context.Context, u *url.URL) (*deckimport.ParsedDeck, error) {
	match := archidektPathRegex.FindStringSubmatch(u.Path)
	if match == nil {
		return nil, fmt.Errorf("%w: invalid Archidekt deck URL %q", ErrUnsupportedURL, u.String())
	}

	body, _, err := a.svc.get(ctx, a.name(), a.apiBase+"/api/decks/"+match[1]+"/", "application/json")
	if err != nil {
		return nil, err
	}

	var data archidektDeck
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse Archidekt response: %w", err)
	}

	deck := &deckimport.ParsedDeck{
		Name:      data.Name,
		Mainboard: []deckimport.UnresolvedCardEntry{},
		Sideboard: []deckimport.UnresolvedCardEntry{},
	}

	// Categories are user-defined; only the three standard ones route cards.
	for _, c := range data.Cards {
		entry := deckimport.UnresolvedCardEntry{
			Quantity:        c.Quantity,
			Name:            c.Card.OracleCard.Name,
			Set:             c.Card.Edition.EditionCode,
			CollectorNumber: c.Card.CollectorNumber,
			IsFoil:          c.Modifier == "Foil",
		}

		switch {
		case slices.Contains(c.Categories, "Commander"):
			entry.IsCommander = true
			deck.Sideboard = append(deck.Sideboard, entry)
		case slices.Contains(c.Categories, "Sideboard"):
			deck.Sideboard = append(deck.Sideboard, entry)
		case slices.Contains(c.Categories, "Maybeboard"):
			// not part of the deck
		default:
			deck.Mainboard = append(deck.Mainboard, entry)
		}
	}

	return deck, nil
}
