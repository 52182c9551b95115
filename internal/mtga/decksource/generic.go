package decksource

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
)

// generic handles any other page: plain-text bodies are parsed directly and
// HTML pages contribute the text of their <pre> and <textarea> elements.
type generic struct {
	svc *Service
}

func (g *generic) name() string { return "web" }

func (g *generic) match(*url.URL) bool { return true }

func (g *generic) fetch(ctx context.Context, u *url.URL) (*deckimport.ParsedDeck, error) {
	body, contentType, err := g.svc.get(ctx, u.Host, u.String(), "text/plain, text/html;q=0.9")
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)

	var text, title string
	switch mediaType {
	case "text/plain", "":
		text = string(body)
	case "text/html", "application/xhtml+xml":
		title, text, err = extractDeckText(body)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrUnsupportedURL, mediaType)
	}

	deck := deckimport.ParseText(text)
	if len(deck.Mainboard) == 0 && len(deck.Sideboard) == 0 {
		return nil, fmt.Errorf("%w at %s", ErrNoDeckList, u.String())
	}
	deck.Name = title

	return deck, nil
}

// extractDeckText returns the page title and the text of every <pre> and
// <textarea> element, separated by blank lines.
func extractDeckText(body []byte) (title, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = strings.TrimSpace(nodeText(n))
				}
				return
			case atom.Pre, atom.Textarea:
				if block := strings.TrimSpace(nodeText(n)); block != "" {
					blocks = append(blocks, block)
				}
				return
			case atom.Script, atom.Style:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, strings.Join(blocks, "\n\n"), nil
}

// nodeText concatenates the text beneath n, turning <br> into newlines.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
