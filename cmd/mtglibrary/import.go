package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
)

var (
	importOutput   string
	importSave     bool
	importName     string
	importViaProxy bool
)

var importCmd = &cobra.Command{
	Use:   "import <file|url|->",
	Short: "Import a deck list from a file, URL, or stdin",
	Long: `Parses a deck list and resolves every card against Scryfall.

The source is a file path, "-" for stdin, or an http(s) URL. URLs are fetched
directly from the deck site unless --via-proxy is set, in which case they go
through the configured URL import proxy (import.proxy_url).

Examples:
  mtglibrary import deck.txt
  pbpaste | mtglibrary import - --output json
  mtglibrary import https://www.moxfield.com/decks/abc123 --save`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importOutput, "output", "o", "text", "output format: text, json, yaml")
	importCmd.Flags().BoolVar(&importSave, "save", false, "save the deck to the library")
	importCmd.Flags().StringVar(&importName, "name", "", "deck name when saving")
	importCmd.Flags().BoolVar(&importViaProxy, "via-proxy", false, "fetch URLs through the URL import proxy")
}

func runImport(cmd *cobra.Command, args []string) error {
	switch importOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q", importOutput)
	}

	ctx, stop := signalContext()
	defer stop()

	importer, err := newImporter(cfg, logger)
	if err != nil {
		return err
	}

	source := args[0]
	var result *deckimport.Result
	var sourceKind, sourceURL string

	if isURL(source) {
		sourceKind, sourceURL = models.SourceURL, source
		if importViaProxy {
			result = importer.ImportURL(ctx, source)
		} else {
			sources, err := newSources(cfg, logger)
			if err != nil {
				return err
			}
			result = importer.Resolve(ctx, fetchDeck(ctx, sources, source))
		}
	} else {
		text, err := readSource(cmd.InOrStdin(), source)
		if err != nil {
			return err
		}
		sourceKind = models.SourceText
		if source != "-" {
			sourceKind = models.SourceFile
			if importName == "" {
				importName = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
			}
		}
		result = importer.ImportText(ctx, text)
	}

	report := newImportReport(result)

	if importSave && result.Saveable() {
		store, err := openStorage(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		deck, err := store.SaveImport(ctx, importName, sourceKind, sourceURL, result)
		if err != nil {
			return err
		}
		report.DeckID = deck.ID
	}

	if err := writeReport(cmd.OutOrStdout(), importOutput, report); err != nil {
		return err
	}

	if result.TotalFailure() {
		return fmt.Errorf("nothing could be imported")
	}
	if result.NothingResolved() {
		return fmt.Errorf("no card could be resolved; is the catalog reachable?")
	}
	return nil
}

// deckFetcher fetches unresolved decks from deck sites.
type deckFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*deckimport.ParsedDeck, error)
}

// fetchDeck fetches a deck, folding a failure into the deck's warnings the
// same way the URL importer reports proxy failures.
func fetchDeck(ctx context.Context, sources deckFetcher, rawURL string) *deckimport.ParsedDeck {
	deck, err := sources.Fetch(ctx, rawURL)
	if err != nil {
		return &deckimport.ParsedDeck{
			Mainboard: []deckimport.UnresolvedCardEntry{},
			Sideboard: []deckimport.UnresolvedCardEntry{},
			Errors:    []string{err.Error()},
		}
	}
	return deck
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func readSource(stdin io.Reader, source string) (string, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read deck file: %w", err)
	}
	return string(data), nil
}

// importReport is the printable summary of an import.
type importReport struct {
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
	DeckID       string        `json:"deckId,omitempty" yaml:"deck_id,omitempty"`
	CardCount    int           `json:"cardCount" yaml:"card_count"`
	TotalFailure bool          `json:"totalFailure" yaml:"total_failure"`
	Mainboard    []reportCard  `json:"mainboard" yaml:"mainboard"`
	Sideboard    []reportCard  `json:"sideboard" yaml:"sideboard"`
	Unresolved   []reportEntry `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Warnings     []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type reportCard struct {
	Quantity        int    `json:"quantity" yaml:"quantity"`
	Name            string `json:"name" yaml:"name"`
	Set             string `json:"set" yaml:"set"`
	CollectorNumber string `json:"collectorNumber" yaml:"collector_number"`
	CatalogID       string `json:"catalogId" yaml:"catalog_id"`
	Foil            bool   `json:"foil,omitempty" yaml:"foil,omitempty"`
	Commander       bool   `json:"commander,omitempty" yaml:"commander,omitempty"`
}

type reportEntry struct {
	Quantity int    `json:"quantity" yaml:"quantity"`
	Name     string `json:"name" yaml:"name"`
	Set      string `json:"set,omitempty" yaml:"set,omitempty"`
}

func newImportReport(result *deckimport.Result) *importReport {
	report := &importReport{
		Name:         result.Name,
		CardCount:    result.CardCount(),
		TotalFailure: result.TotalFailure(),
		Mainboard:    reportCards(result.Mainboard),
		Sideboard:    reportCards(result.Sideboard),
		Warnings:     result.Errors,
	}
	for _, e := range result.Unresolved {
		report.Unresolved = append(report.Unresolved, reportEntry{Quantity: e.Quantity, Name: e.Name, Set: e.Set})
	}
	return report
}

func reportCards(entries []deckimport.ResolvedCardEntry) []reportCard {
	cards := make([]reportCard, 0, len(entries))
	for _, e := range entries {
		cards = append(cards, reportCard{
			Quantity:        e.Quantity,
			Name:            e.Name,
			Set:             strings.ToUpper(e.Set),
			CollectorNumber: e.CollectorNumber,
			CatalogID:       e.CatalogID,
			Foil:            e.IsFoil,
			Commander:       e.IsCommander,
		})
	}
	return cards
}

func writeReport(w io.Writer, format string, report *importReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeTextReport(w, report)
	}
}

// writeTextReport prints the resolved deck in Arena form followed by a
// summary of what was left out.
func writeTextReport(w io.Writer, report *importReport) error {
	var sb strings.Builder

	if report.Name != "" {
		fmt.Fprintf(&sb, "// %s\n", report.Name)
	}
	sb.WriteString("Deck\n")
	for _, c := range report.Mainboard {
		sb.WriteString(textLine(c))
	}
	if len(report.Sideboard) > 0 {
		sb.WriteString("\nSideboard\n")
		for _, c := range report.Sideboard {
			sb.WriteString(textLine(c))
		}
	}

	fmt.Fprintf(&sb, "\n// %d cards", report.CardCount)
	if report.DeckID != "" {
		fmt.Fprintf(&sb, ", saved as %s", report.DeckID)
	}
	sb.WriteString("\n")
	for _, e := range report.Unresolved {
		fmt.Fprintf(&sb, "// Unresolved: %d %s\n", e.Quantity, e.Name)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(&sb, "// Warning: %s\n", warning)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func textLine(c reportCard) string {
	line := fmt.Sprintf("%d %s (%s) %s", c.Quantity, c.Name, c.Set, c.CollectorNumber)
	if c.Foil {
		line += " *F*"
	}
	if c.Commander {
		line += " *CMDR*"
	}
	return line + "\n"
}
