package decksource

import (
	"sync"
	"time"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
)

// deckCache keeps recently fetched decks keyed by URL.
type deckCache struct {
	ttl  time.Duration
	now  func() time.Time
	mu   sync.RWMutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	deck      *deckimport.ParsedDeck
	expiresAt time.Time
}

func newDeckCache(ttl time.Duration) *deckCache {
	return &deckCache{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]cacheEntry),
	}
}

// get returns a copy of the cached deck so callers may modify it.
func (c *deckCache) get(key string) (*deckimport.ParsedDeck, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return cloneDeck(entry.deck), true
}

func (c *deckCache) set(key string, deck *deckimport.ParsedDeck) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.data {
		if now.After(e.expiresAt) {
			delete(c.data, k)
		}
	}
	c.data[key] = cacheEntry{deck: cloneDeck(deck), expiresAt: now.Add(c.ttl)}
}

func cloneDeck(d *deckimport.ParsedDeck) *deckimport.ParsedDeck {
	return &deckimport.ParsedDeck{
		Name:      d.Name,
		Mainboard: append([]deckimport.UnresolvedCardEntry{}, d.Mainboard...),
		Sideboard: append([]deckimport.UnresolvedCardEntry{}, d.Sideboard...),
		Errors:    append([]string{}, d.Errors...),
	}
}
