package deckimport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/cards/scryfall"
)

var (
	optXLN   = record("opt-xln", "Opt", "xln", "65")
	optDOM   = record("opt-dom", "Opt", "dom", "60")
	boltM11  = record("bolt-m11", "Lightning Bolt", "m11", "146")
	delver   = record("delver-isd", "Delver of Secrets // Insectile Aberration", "isd", "51", "Delver of Secrets", "Insectile Aberration")
	borrower = record("borrower-eld", "Brazen Borrower // Petty Theft", "eld", "39", "Brazen Borrower", "Petty Theft")
)

func TestResolver_ChunksSequentially(t *testing.T) {
	records, entries := numberedCards(150)
	catalog := newFakeCatalog(records...)

	resolved, unresolved := NewResolver(catalog).Resolve(context.Background(), entries)

	require.Equal(t, 2, catalog.callCount())
	assert.Len(t, catalog.calls[0], 75)
	assert.Len(t, catalog.calls[1], 75)
	assert.Len(t, resolved, 150)
	assert.Empty(t, unresolved)
}

func TestResolver_ChunkCount(t *testing.T) {
	tests := []struct {
		entries int
		calls   int
	}{
		{entries: 1, calls: 1},
		{entries: 75, calls: 1},
		{entries: 76, calls: 2},
		{entries: 151, calls: 3},
	}

	for _, tt := range tests {
		records, entries := numberedCards(tt.entries)
		catalog := newFakeCatalog(records...)

		NewResolver(catalog).Resolve(context.Background(), entries)

		assert.Equal(t, tt.calls, catalog.callCount(), "entries=%d", tt.entries)
	}
}

func TestResolver_EmptyInputMakesNoRequest(t *testing.T) {
	catalog := newFakeCatalog()

	resolved, unresolved := NewResolver(catalog).Resolve(context.Background(), nil)

	assert.Equal(t, 0, catalog.callCount())
	assert.NotNil(t, resolved)
	assert.Empty(t, resolved)
	assert.Empty(t, unresolved)
}

func TestResolver_FailedChunkIsSkipped(t *testing.T) {
	records, entries := numberedCards(150)
	catalog := newFakeCatalog(records...)
	catalog.failOn[2] = errCatalogDown

	var progress []Progress
	resolved, unresolved := NewResolver(catalog).ResolveWithProgress(context.Background(), entries, func(p Progress) {
		progress = append(progress, p)
	})

	require.Equal(t, 2, catalog.callCount())
	assert.Len(t, resolved, 75)
	assert.Len(t, unresolved, 75)
	for _, r := range resolved {
		assert.LessOrEqual(t, r.Name, "Test Card 075")
	}

	require.Len(t, progress, 2)
	assert.Equal(t, Progress{Chunk: 1, Chunks: 2, Requested: 75, Matched: 75}, progress[0])
	assert.Equal(t, Progress{Chunk: 2, Chunks: 2, Requested: 75, Matched: 0, Failed: true}, progress[1])
}

func TestResolver_FirstChunkFailureDoesNotStopLaterChunks(t *testing.T) {
	records, entries := numberedCards(100)
	catalog := newFakeCatalog(records...)
	catalog.failOn[1] = errCatalogDown

	resolved, unresolved := NewResolver(catalog).Resolve(context.Background(), entries)

	assert.Equal(t, 2, catalog.callCount())
	assert.Len(t, resolved, 25)
	assert.Len(t, unresolved, 75)
}

func TestResolver_IdentifierShapes(t *testing.T) {
	catalog := newFakeCatalog(optXLN, boltM11)

	NewResolver(catalog).Resolve(context.Background(), []UnresolvedCardEntry{
		{Quantity: 4, Name: "Opt", Set: "XLN", CollectorNumber: "65"},
		{Quantity: 4, Name: "Lightning Bolt", Set: "M11"},
		{Quantity: 1, Name: "Counterspell"},
	})

	require.GreaterOrEqual(t, catalog.callCount(), 1)
	assert.Equal(t, []scryfall.CardIdentifier{
		{Set: "xln", CollectorNumber: "65"},
		{Name: "Lightning Bolt", Set: "m11"},
		{Name: "Counterspell"},
	}, catalog.calls[0])
}

func TestResolver_SameNameDifferentSets(t *testing.T) {
	catalog := newFakeCatalog(optXLN, optDOM)

	entries := []UnresolvedCardEntry{
		{Quantity: 2, Name: "Opt", Set: "XLN"},
		{Quantity: 3, Name: "Opt", Set: "DOM"},
	}
	resolved, unresolved := NewResolver(catalog).Resolve(context.Background(), entries)

	require.Empty(t, unresolved)
	require.Len(t, resolved, 2)

	bySet := make(map[string]ResolvedCardEntry)
	for _, r := range resolved {
		bySet[r.OfficialSet] = r
	}
	assert.Equal(t, "opt-xln", bySet["xln"].CatalogID)
	assert.Equal(t, 2, bySet["xln"].Quantity)
	assert.Equal(t, "opt-dom", bySet["dom"].CatalogID)
	assert.Equal(t, 3, bySet["dom"].Quantity)
}

func TestResolver_PromotesCanonicalValues(t *testing.T) {
	catalog := newFakeCatalog(boltM11)

	resolved, _ := NewResolver(catalog).Resolve(context.Background(), []UnresolvedCardEntry{
		{Quantity: 4, Name: "lightning bolt", IsFoil: true},
	})

	require.Len(t, resolved, 1)
	got := resolved[0]
	assert.Equal(t, "Lightning Bolt", got.Name)
	assert.Equal(t, "m11", got.Set)
	assert.Equal(t, "146", got.CollectorNumber)
	assert.Equal(t, 4, got.Quantity)
	assert.True(t, got.IsFoil)
	assert.Equal(t, "bolt-m11", got.CatalogID)
	assert.Equal(t, "Lightning Bolt", got.OfficialName)
	assert.Equal(t, "https://img.example/bolt-m11.jpg", got.ImageURL)
	assert.JSONEq(t, string(boltM11.Raw), string(got.CatalogData))
}

func TestResolver_FrontFaceName(t *testing.T) {
	catalog := newFakeCatalog(delver)

	resolved, unresolved := NewResolver(catalog).Resolve(context.Background(), []UnresolvedCardEntry{
		{Quantity: 4, Name: "Delver of Secrets"},
	})

	assert.Empty(t, unresolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, "delver-isd", resolved[0].CatalogID)
	assert.Equal(t, "Delver of Secrets // Insectile Aberration", resolved[0].Name)
}

func TestResolver_RoundTrip(t *testing.T) {
	catalog := newFakeCatalog(optXLN, boltM11, delver)
	resolver := NewResolver(catalog)

	first, unresolved := resolver.Resolve(context.Background(), []UnresolvedCardEntry{
		{Quantity: 4, Name: "Opt"},
		{Quantity: 4, Name: "Lightning Bolt"},
		{Quantity: 2, Name: "Delver of Secrets"},
	})
	require.Empty(t, unresolved)

	pinned := make([]UnresolvedCardEntry, len(first))
	for i, r := range first {
		pinned[i] = UnresolvedCardEntry{
			Quantity:        r.Quantity,
			Name:            r.Name,
			Set:             r.Set,
			CollectorNumber: r.CollectorNumber,
		}
	}

	second, unresolved := resolver.Resolve(context.Background(), pinned)
	require.Empty(t, unresolved)
	require.Len(t, second, len(first))

	ids := make(map[string]string)
	for _, r := range first {
		ids[r.Name] = r.CatalogID
	}
	for _, r := range second {
		assert.Equal(t, ids[r.Name], r.CatalogID, "catalog id changed for %s", r.Name)
	}
}

func TestResolver_NotFoundRetry(t *testing.T) {
	entry := UnresolvedCardEntry{Quantity: 1, Name: "Brazen Borrower // Petty Theft", Set: "ELD", CollectorNumber: "999"}

	t.Run("retry resolves by front face", func(t *testing.T) {
		catalog := newFakeCatalog(borrower)

		resolved, unresolved := NewResolver(catalog).Resolve(context.Background(), []UnresolvedCardEntry{entry})

		assert.Equal(t, 2, catalog.callCount())
		assert.Equal(t, []scryfall.CardIdentifier{{Name: "Brazen Borrower"}}, catalog.calls[1])
		assert.Empty(t, unresolved)
		require.Len(t, resolved, 1)
		assert.Equal(t, "39", resolved[0].CollectorNumber)
	})

	t.Run("retry disabled", func(t *testing.T) {
		catalog := newFakeCatalog(borrower)

		resolved, unresolved := NewResolver(catalog, WithNotFoundRetry(false)).Resolve(context.Background(), []UnresolvedCardEntry{entry})

		assert.Equal(t, 1, catalog.callCount())
		assert.Empty(t, resolved)
		assert.Equal(t, []UnresolvedCardEntry{entry}, unresolved)
	})

	t.Run("retry failure keeps entry unresolved", func(t *testing.T) {
		catalog := newFakeCatalog(borrower)
		catalog.failOn[2] = errCatalogDown

		resolved, unresolved := NewResolver(catalog).Resolve(context.Background(), []UnresolvedCardEntry{entry})

		assert.Empty(t, resolved)
		assert.Len(t, unresolved, 1)
	})
}

func TestResolver_UnknownCardIsUnresolved(t *testing.T) {
	catalog := newFakeCatalog(optXLN)

	resolved, unresolved := NewResolver(catalog).Resolve(context.Background(), []UnresolvedCardEntry{
		{Quantity: 4, Name: "Opt"},
		{Quantity: 1, Name: "Not A Real Card"},
	})

	assert.Len(t, resolved, 1)
	assert.Equal(t, []UnresolvedCardEntry{{Quantity: 1, Name: "Not A Real Card"}}, unresolved)
}

func TestResolver_CancelledContext(t *testing.T) {
	records, entries := numberedCards(10)
	catalog := newFakeCatalog(records...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolved, unresolved := NewResolver(catalog).Resolve(ctx, entries)

	assert.Equal(t, 0, catalog.callCount())
	assert.Empty(t, resolved)
	assert.Len(t, unresolved, 10)
}

func TestResolver_WithChunkSize(t *testing.T) {
	records, entries := numberedCards(10)

	tests := []struct {
		size  int
		calls int
	}{
		{size: 3, calls: 4},
		{size: 0, calls: 1},
		{size: 200, calls: 1},
	}

	for _, tt := range tests {
		catalog := newFakeCatalog(records...)
		NewResolver(catalog, WithChunkSize(tt.size)).Resolve(context.Background(), entries)
		assert.Equal(t, tt.calls, catalog.callCount(), "size=%d", tt.size)
	}
}

func TestMatchRecord_PinnedEntryIgnoresName(t *testing.T) {
	chunk := []UnresolvedCardEntry{
		{Quantity: 1, Name: "Opt", Set: "DOM", CollectorNumber: "60"},
	}
	matched := make([]*ResolvedCardEntry, len(chunk))

	assert.Equal(t, -1, matchRecord(chunk, matched, &optXLN))
	assert.Equal(t, 0, matchRecord(chunk, matched, &optDOM))
}

func TestMatchRecord_PrefersRequestedSet(t *testing.T) {
	chunk := []UnresolvedCardEntry{
		{Quantity: 1, Name: "Opt", Set: "DOM"},
		{Quantity: 1, Name: "Opt"},
		{Quantity: 1, Name: "Opt", Set: "XLN"},
	}
	matched := make([]*ResolvedCardEntry, len(chunk))

	assert.Equal(t, 2, matchRecord(chunk, matched, &optXLN))

	matched[2] = &ResolvedCardEntry{}
	assert.Equal(t, 1, matchRecord(chunk, matched, &optXLN))

	matched[1] = &ResolvedCardEntry{}
	assert.Equal(t, 0, matchRecord(chunk, matched, &optXLN))
}

func TestLooseNameMatch(t *testing.T) {
	assert.True(t, looseNameMatch("Delver of Secrets", &delver))
	assert.True(t, looseNameMatch("delver of secrets // insectile aberration", &delver))
	assert.False(t, looseNameMatch("Delver", &delver))

	single := record("x", "Fire", "mh2", "1")
	assert.True(t, looseNameMatch("Fire // Ice", &single))
}
