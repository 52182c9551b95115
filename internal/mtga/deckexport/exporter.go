package deckexport

import (
	"fmt"
	"strings"

	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
)

// ExportFormat represents the format to export the deck in.
type ExportFormat string

const (
	FormatArena       ExportFormat = "arena"       // "4 Opt (XLN) 65", Deck/Sideboard headers
	FormatPlainText   ExportFormat = "plaintext"   // "4x Opt"
	FormatMTGO        ExportFormat = "mtgo"        // "4 Opt", sideboard lines prefixed "SB: "
	FormatMTGGoldfish ExportFormat = "mtggoldfish" // "4 Opt", bare Sideboard header
)

// Formats lists every supported export format.
var Formats = []ExportFormat{FormatArena, FormatPlainText, FormatMTGO, FormatMTGGoldfish}

// ParseFormat validates a format name. An empty name selects arena.
func ParseFormat(s string) (ExportFormat, error) {
	if s == "" {
		return FormatArena, nil
	}
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format: %s", s)
}

// ExportOptions controls deck export behavior.
type ExportOptions struct {
	Format         ExportFormat
	IncludeStats   bool // Card counts and unresolved entries as comments
	IncludeHeaders bool // Section headers (Deck, Sideboard, etc.)
}

// DeckExport represents an exported deck.
type DeckExport struct {
	Content  string       // The exported deck text
	Format   ExportFormat // The format used
	Filename string       // Suggested filename for download
}

// Exporter renders stored decks as text deck lists.
type Exporter struct{}

// NewExporter creates a new deck exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export exports a deck to the specified format. Cards on the unresolved
// board are never written as card lines.
func (e *Exporter) Export(deck *models.Deck, deckCards []*models.DeckCard, options *ExportOptions) (*DeckExport, error) {
	if deck == nil {
		return nil, fmt.Errorf("deck is nil")
	}

	if options == nil {
		options = &ExportOptions{
			Format:         FormatArena,
			IncludeHeaders: true,
		}
	}

	mainboard := filterCardsByBoard(deckCards, models.BoardMainboard)
	sideboard := filterCardsByBoard(deckCards, models.BoardSideboard)

	var sb strings.Builder
	if options.IncludeStats {
		writeStats(&sb, deck, mainboard, sideboard, filterCardsByBoard(deckCards, models.BoardUnresolved))
	}

	ext := "txt"
	switch options.Format {
	case FormatArena:
		exportArena(&sb, mainboard, sideboard, options)
	case FormatPlainText:
		exportPlainText(&sb, deck, mainboard, sideboard, options)
	case FormatMTGO:
		exportMTGO(&sb, mainboard, sideboard)
		ext = "dek"
	case FormatMTGGoldfish:
		exportMTGGoldfish(&sb, mainboard, sideboard)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", options.Format)
	}

	return &DeckExport{
		Content:  sb.String(),
		Format:   options.Format,
		Filename: fmt.Sprintf("%s.%s", sanitizeFilename(deck.Name), ext),
	}, nil
}

// exportArena writes the Arena clipboard format, which pins each printing
// so the list imports back to the same cards.
// Format: "4 Lightning Bolt (M21) 123 *F*"
func exportArena(sb *strings.Builder, mainboard, sideboard []*models.DeckCard, options *ExportOptions) {
	if options.IncludeHeaders {
		sb.WriteString("Deck\n")
	}
	for _, card := range mainboard {
		sb.WriteString(arenaLine(card))
	}

	if len(sideboard) > 0 {
		sb.WriteString("\n")
		if options.IncludeHeaders {
			sb.WriteString("Sideboard\n")
		}
		for _, card := range sideboard {
			sb.WriteString(arenaLine(card))
		}
	}
}

func arenaLine(card *models.DeckCard) string {
	line := fmt.Sprintf("%d %s", card.Quantity, card.Name)
	if card.SetCode != "" {
		line += fmt.Sprintf(" (%s)", strings.ToUpper(card.SetCode))
		if card.CollectorNumber != "" {
			line += " " + card.CollectorNumber
		}
	}
	if card.IsFoil {
		line += " *F*"
	}
	if card.IsCommander {
		line += " *CMDR*"
	}
	return line + "\n"
}

// exportPlainText writes "4x Card Name" lines.
func exportPlainText(sb *strings.Builder, deck *models.Deck, mainboard, sideboard []*models.DeckCard, options *ExportOptions) {
	if options.IncludeHeaders {
		fmt.Fprintf(sb, "// %s\n\n", deck.Name)
		sb.WriteString("Mainboard:\n")
	}
	for _, card := range mainboard {
		fmt.Fprintf(sb, "%dx %s\n", card.Quantity, card.Name)
	}

	if len(sideboard) > 0 {
		sb.WriteString("\n")
		if options.IncludeHeaders {
			sb.WriteString("Sideboard:\n")
		}
		for _, card := range sideboard {
			fmt.Fprintf(sb, "%dx %s\n", card.Quantity, card.Name)
		}
	}
}

// exportMTGO writes quantity-first lines with "SB:" marking the sideboard.
func exportMTGO(sb *strings.Builder, mainboard, sideboard []*models.DeckCard) {
	for _, card := range mainboard {
		fmt.Fprintf(sb, "%d %s\n", card.Quantity, card.Name)
	}

	if len(sideboard) > 0 {
		sb.WriteString("\n")
		for _, card := range sideboard {
			fmt.Fprintf(sb, "SB: %d %s\n", card.Quantity, card.Name)
		}
	}
}

// exportMTGGoldfish writes quantity-first lines with a bare Sideboard header.
func exportMTGGoldfish(sb *strings.Builder, mainboard, sideboard []*models.DeckCard) {
	for _, card := range mainboard {
		fmt.Fprintf(sb, "%d %s\n", card.Quantity, card.Name)
	}

	if len(sideboard) > 0 {
		sb.WriteString("\nSideboard\n")
		for _, card := range sideboard {
			fmt.Fprintf(sb, "%d %s\n", card.Quantity, card.Name)
		}
	}
}

func writeStats(sb *strings.Builder, deck *models.Deck, mainboard, sideboard, unresolved []*models.DeckCard) {
	fmt.Fprintf(sb, "// %s\n", deck.Name)
	fmt.Fprintf(sb, "// Mainboard: %d cards\n", countCards(mainboard))
	fmt.Fprintf(sb, "// Sideboard: %d cards\n", countCards(sideboard))
	for _, card := range unresolved {
		fmt.Fprintf(sb, "// Unresolved: %d %s\n", card.Quantity, card.Name)
	}
	sb.WriteString("\n")
}

func countCards(cards []*models.DeckCard) int {
	n := 0
	for _, c := range cards {
		n += c.Quantity
	}
	return n
}

// filterCardsByBoard returns cards from a specific board.
func filterCardsByBoard(deckCards []*models.DeckCard, board string) []*models.DeckCard {
	filtered := make([]*models.DeckCard, 0)
	for _, card := range deckCards {
		if card.Board == board {
			filtered = append(filtered, card)
		}
	}
	return filtered
}

// sanitizeFilename removes invalid characters from filename.
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if len(result) > 100 {
		result = result[:100]
	}
	if result == "" {
		result = "deck"
	}
	return result
}
