package deckimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "4 Opt (XLN) 65", "1x Opt (XLN)", "1 Opt (PLST) M20-253".
	// Group 1: quantity, Group 2: name, Group 3: set code, Group 4: collector number (optional)
	pinnedRegex = regexp.MustCompile(`^(\d+)[xX]?\s+(.+)\s+\(([A-Za-z0-9]{3,4})\)(?:\s*([0-9A-Za-z★][0-9A-Za-z★\-]*))?`)

	// "4 Opt" or "4x Opt"
	quantityRegex = regexp.MustCompile(`^(\d+)[xX]?\s+(.+)`)

	// Trailing "(XLN)" left on a quantity-only line.
	setSuffixRegex = regexp.MustCompile(`\s*\(([A-Za-z0-9]{3,4})\)$`)

	letterRegex = regexp.MustCompile(`[a-zA-Z]`)

	// Deck-builder category tags such as "[Ramp]" or "[Commander{top}]".
	tagRegex       = regexp.MustCompile(`\[.*?\]`)
	commanderRegex = regexp.MustCompile(`(?i)\[.*Commander.*\]|\*CMDR\*`)
	cmdrTokenRegex = regexp.MustCompile(`(?i)\*CMDR\*`)
	foilTokenRegex = regexp.MustCompile(`(?i)\*F\*`)
)

// ParseLine parses one line of a deck list. It tries, in order, the pinned
// printing form, the quantity-only form and the bare-name form, and reports
// false when none applies.
func ParseLine(line string) (UnresolvedCardEntry, bool) {
	isCommander := commanderRegex.MatchString(line)
	isFoil := foilTokenRegex.MatchString(line)

	line = tagRegex.ReplaceAllString(line, "")
	line = cmdrTokenRegex.ReplaceAllString(line, "")
	line = foilTokenRegex.ReplaceAllString(line, "")
	line = strings.TrimSpace(line)
	if line == "" {
		return UnresolvedCardEntry{}, false
	}

	if m := pinnedRegex.FindStringSubmatch(line); m != nil {
		qty, ok := parseQuantity(m[1])
		if !ok {
			return UnresolvedCardEntry{}, false
		}
		return UnresolvedCardEntry{
			Quantity:        qty,
			Name:            strings.TrimSpace(m[2]),
			Set:             strings.ToUpper(m[3]),
			CollectorNumber: m[4],
			IsFoil:          isFoil,
			IsCommander:     isCommander,
		}, true
	}

	if m := quantityRegex.FindStringSubmatch(line); m != nil {
		qty, ok := parseQuantity(m[1])
		if !ok {
			return UnresolvedCardEntry{}, false
		}

		name := strings.TrimSpace(m[2])
		set := ""
		if sm := setSuffixRegex.FindStringSubmatch(name); sm != nil {
			set = strings.ToUpper(sm[1])
			name = strings.TrimSpace(strings.TrimSuffix(name, sm[0]))
		}
		if name == "" {
			return UnresolvedCardEntry{}, false
		}

		return UnresolvedCardEntry{
			Quantity:    qty,
			Name:        name,
			Set:         set,
			IsFoil:      isFoil,
			IsCommander: isCommander,
		}, true
	}

	if letterRegex.MatchString(line) {
		return UnresolvedCardEntry{
			Quantity:    1,
			Name:        line,
			IsFoil:      isFoil,
			IsCommander: isCommander,
		}, true
	}

	return UnresolvedCardEntry{}, false
}

func parseQuantity(s string) (int, bool) {
	qty, err := strconv.Atoi(s)
	if err != nil || qty < 1 {
		return 0, false
	}
	return qty, true
}

// sectionHeader reports whether the line is a section header and which
// section it opens.
func sectionHeader(line string) (Section, bool) {
	switch strings.TrimSuffix(strings.ToLower(line), ":") {
	case "deck", "mainboard", "main":
		return SectionMainboard, true
	case "sideboard", "commander":
		return SectionSideboard, true
	}
	return "", false
}

// ParseText parses a whole deck list. Header lines switch the current
// section, every other line is parsed with ParseLine and appended to the
// active section. Both lists are consolidated before returning.
//
// Supported dialects:
//
//	Deck
//	4 Opt (XLN) 65
//	1x Sol Ring [Ramp]
//	Lightning Bolt
//
//	Sideboard
//	SB: 2 Negate
func ParseText(text string) *ParsedDeck {
	deck := newParsedDeck()
	if strings.TrimSpace(text) == "" {
		deck.Errors = append(deck.Errors, "Empty input")
		return deck
	}

	section := SectionMainboard
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}

		if s, ok := sectionHeader(line); ok {
			section = s
			continue
		}

		target := section
		if rest, ok := cutPrefixFold(line, "SB:"); ok {
			line = strings.TrimSpace(rest)
			target = SectionSideboard
		}

		entry, ok := ParseLine(line)
		if !ok {
			if len(line) > 2 {
				deck.Errors = append(deck.Errors, fmt.Sprintf("Could not parse line: %q", line))
			}
			continue
		}

		if target == SectionMainboard {
			deck.Mainboard = append(deck.Mainboard, entry)
		} else {
			deck.Sideboard = append(deck.Sideboard, entry)
		}
	}

	deck.Mainboard = Consolidate(deck.Mainboard)
	deck.Sideboard = Consolidate(deck.Sideboard)

	return deck
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
