// Package decksource fetches deck lists from deck-building sites and turns
// them into unresolved decks. It backs the URL import proxy endpoint.
package decksource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
)

// maxBodySize caps how much of an upstream response is read.
const maxBodySize = 4 << 20

var (
	// ErrUnsupportedURL is returned for URLs no fetcher can handle, including
	// malformed deck URLs of supported sites.
	ErrUnsupportedURL = errors.New("unsupported deck URL")

	// ErrNoDeckList is returned when a generic page contains no deck list.
	ErrNoDeckList = errors.New("no deck list found")
)

// UpstreamError is returned when a deck site answers with a non-200 status.
type UpstreamError struct {
	Source string
	Status int
}

func (e *UpstreamError) Error() string {
	if e.Status == http.StatusNotFound {
		return fmt.Sprintf("%s: deck not found or private", e.Source)
	}
	return fmt.Sprintf("%s returned HTTP %d", e.Source, e.Status)
}

// fetcher handles the URLs of one deck site.
type fetcher interface {
	name() string
	match(u *url.URL) bool
	fetch(ctx context.Context, u *url.URL) (*deckimport.ParsedDeck, error)
}

// Config configures the deck source service.
type Config struct {
	// MoxfieldAPI is the Moxfield API base URL.
	MoxfieldAPI string

	// ArchidektAPI is the Archidekt base URL.
	ArchidektAPI string

	// UserAgent is sent with every upstream request.
	UserAgent string

	// RequestTimeout is the HTTP request timeout.
	RequestTimeout time.Duration

	// RateLimit is the number of upstream requests per second (0 = unlimited).
	RateLimit float64

	// CacheTTL is how long fetched decks are reused (0 disables caching).
	CacheTTL time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		MoxfieldAPI:    "https://api2.moxfield.com",
		ArchidektAPI:   "https://archidekt.com",
		UserAgent:      "MTGLibrary/1.0",
		RequestTimeout: 20 * time.Second,
		RateLimit:      2,
		CacheTTL:       5 * time.Minute,
	}
}

// Service fetches decks from Moxfield, Archidekt, or any page carrying a
// plain-text deck list.
type Service struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	userAgent   string
	cache       *deckCache
	fetchers    []fetcher
	logger      *zap.Logger
}

// NewService creates a deck source service. A nil httpClient gets one with
// the configured timeout.
func NewService(config *Config, httpClient *http.Client, logger *zap.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.RequestTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	s := &Service{
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(limit, 1),
		userAgent:   config.UserAgent,
		cache:       newDeckCache(config.CacheTTL),
		logger:      logger,
	}
	s.fetchers = []fetcher{
		&moxfield{svc: s, apiBase: strings.TrimRight(config.MoxfieldAPI, "/")},
		&archidekt{svc: s, apiBase: strings.TrimRight(config.ArchidektAPI, "/")},
		&generic{svc: s},
	}
	return s
}

// Fetch retrieves the deck at rawURL. Boards come back consolidated with
// upper-case set codes.
func (s *Service) Fetch(ctx context.Context, rawURL string) (*deckimport.ParsedDeck, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	key := u.String()
	if deck, ok := s.cache.get(key); ok {
		s.logger.Debug("deck source cache hit", zap.String("url", key))
		return deck, nil
	}

	for _, f := range s.fetchers {
		if !f.match(u) {
			continue
		}

		start := time.Now()
		deck, err := f.fetch(ctx, u)
		if err != nil {
			s.logger.Warn("deck fetch failed",
				zap.String("source", f.name()),
				zap.String("url", key),
				zap.Error(err))
			return nil, err
		}

		normalize(deck)
		s.logger.Info("deck fetched",
			zap.String("source", f.name()),
			zap.String("url", key),
			zap.Int("mainboard", len(deck.Mainboard)),
			zap.Int("sideboard", len(deck.Sideboard)),
			zap.Duration("elapsed", time.Since(start)))

		s.cache.set(key, deck)
		return deck, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
}

// normalize drops entries without a name or quantity, upper-cases set
// codes and consolidates both boards.
func normalize(deck *deckimport.ParsedDeck) {
	if deck.Errors == nil {
		deck.Errors = []string{}
	}
	for _, board := range []*[]deckimport.UnresolvedCardEntry{&deck.Mainboard, &deck.Sideboard} {
		kept := make([]deckimport.UnresolvedCardEntry, 0, len(*board))
		for _, e := range *board {
			if e.Name == "" || e.Quantity < 1 {
				deck.Errors = append(deck.Errors, fmt.Sprintf("Skipped invalid entry: %q x%d", e.Name, e.Quantity))
				continue
			}
			e.Set = strings.ToUpper(e.Set)
			if e.Set == "" {
				e.CollectorNumber = ""
			}
			kept = append(kept, e)
		}
		*board = deckimport.Consolidate(kept)
	}
}

// get performs a rate-limited GET and returns the body and content type.
func (s *Service) get(ctx context.Context, source, target, accept string) ([]byte, string, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s request failed: %w", source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, "", &UpstreamError{Source: source, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s response: %w", source, err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// hostIs reports whether host is domain or a subdomain of it.
func hostIs(host, domain string) bool {
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
