package scryfall_test

import (
	"context"
	"fmt"
	"log"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/cards/scryfall"
)

// ExampleClient_Collection demonstrates a batch lookup with mixed identifiers.
func ExampleClient_Collection() {
	client := scryfall.NewClient()
	ctx := context.Background()

	resp, err := client.Collection(ctx, []scryfall.CardIdentifier{
		{Set: "xln", CollectorNumber: "65"},
		{Name: "Lightning Bolt", Set: "m11"},
		{Name: "Counterspell"},
	})
	if err != nil {
		log.Fatal(err)
	}

	// Data is unordered relative to the identifiers.
	for _, card := range resp.Data {
		fmt.Printf("%s (%s) %s\n", card.Name, card.SetCode, card.CollectorNumber)
	}
	for _, missing := range resp.NotFound {
		fmt.Printf("not found: %s\n", missing)
	}
}

// ExampleClient_GetCardBySetNumber demonstrates fetching one exact printing.
func ExampleClient_GetCardBySetNumber() {
	client := scryfall.NewClient()

	card, err := client.GetCardBySetNumber(context.Background(), "XLN", "65")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Card: %s\n", card.Name)
	fmt.Printf("Image: %s\n", card.ImageURL())
}
