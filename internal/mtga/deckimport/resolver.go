package deckimport

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/cards/scryfall"
)

// ChunkSize is the number of entries sent per catalog request. It equals
// the catalog's batch-lookup limit.
const ChunkSize = scryfall.MaxBatchSize

// Catalog is the batch card-lookup service entries are resolved against.
// *scryfall.Client satisfies it.
type Catalog interface {
	Collection(ctx context.Context, identifiers []scryfall.CardIdentifier) (*scryfall.CollectionResponse, error)
}

// Progress describes the outcome of one resolved chunk.
type Progress struct {
	Section   Section `json:"section,omitempty"`
	Chunk     int     `json:"chunk"` // 1-based
	Chunks    int     `json:"chunks"`
	Requested int     `json:"requested"`
	Matched   int     `json:"matched"`
	Failed    bool    `json:"failed"`
}

// ProgressFunc is called after every chunk.
type ProgressFunc func(Progress)

// Resolver matches unresolved entries to catalog printings in sequential
// fixed-size chunks.
type Resolver struct {
	catalog       Catalog
	logger        *zap.Logger
	chunkSize     int
	retryNotFound bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithChunkSize overrides the chunk size. Values outside 1..ChunkSize are ignored.
func WithChunkSize(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 && n <= ChunkSize {
			r.chunkSize = n
		}
	}
}

// WithNotFoundRetry enables or disables the name-only retry of entries the
// catalog reported as not found.
func WithNotFoundRetry(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.retryNotFound = enabled
	}
}

// NewResolver creates a resolver backed by the given catalog.
func NewResolver(catalog Catalog, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		catalog:       catalog,
		logger:        zap.NewNop(),
		chunkSize:     ChunkSize,
		retryNotFound: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves entries against the catalog. It never fails: entries the
// catalog did not match, and entries of chunks whose request failed, are
// returned as unresolved. The resolved slice has no order correspondence
// with the input.
func (r *Resolver) Resolve(ctx context.Context, entries []UnresolvedCardEntry) ([]ResolvedCardEntry, []UnresolvedCardEntry) {
	return r.ResolveWithProgress(ctx, entries, nil)
}

// ResolveWithProgress is Resolve with a callback invoked after each chunk.
func (r *Resolver) ResolveWithProgress(ctx context.Context, entries []UnresolvedCardEntry, progress ProgressFunc) ([]ResolvedCardEntry, []UnresolvedCardEntry) {
	resolved := make([]ResolvedCardEntry, 0, len(entries))
	unresolved := make([]UnresolvedCardEntry, 0)
	if len(entries) == 0 {
		return resolved, unresolved
	}

	chunks := (len(entries) + r.chunkSize - 1) / r.chunkSize

	for i := 0; i < len(entries); i += r.chunkSize {
		end := min(i+r.chunkSize, len(entries))
		chunk := entries[i:end]
		chunkNum := i/r.chunkSize + 1

		if err := ctx.Err(); err != nil {
			r.logger.Warn("import cancelled before all chunks were resolved",
				zap.Int("chunk", chunkNum),
				zap.Int("skipped", len(entries)-i),
				zap.Error(err))
			unresolved = append(unresolved, entries[i:]...)
			break
		}

		matched, failed := r.resolveChunk(ctx, chunk)

		count := 0
		for j, entry := range chunk {
			if matched[j] != nil {
				resolved = append(resolved, *matched[j])
				count++
			} else {
				unresolved = append(unresolved, entry)
			}
		}

		if progress != nil {
			progress(Progress{
				Chunk:     chunkNum,
				Chunks:    chunks,
				Requested: len(chunk),
				Matched:   count,
				Failed:    failed,
			})
		}
	}

	if len(unresolved) > 0 {
		r.logger.Warn("cards failed to resolve",
			zap.Int("unresolved", len(unresolved)),
			zap.Int("requested", len(entries)))
	}

	return resolved, unresolved
}

// resolveChunk performs one batch lookup (plus the optional retry) and
// returns, per chunk position, the resolved entry or nil.
func (r *Resolver) resolveChunk(ctx context.Context, chunk []UnresolvedCardEntry) ([]*ResolvedCardEntry, bool) {
	matched := make([]*ResolvedCardEntry, len(chunk))

	identifiers := make([]scryfall.CardIdentifier, len(chunk))
	for i, entry := range chunk {
		identifiers[i] = identifierFor(entry)
	}

	resp, err := r.catalog.Collection(ctx, identifiers)
	if err != nil {
		r.logger.Error("failed to resolve batch",
			zap.Int("size", len(chunk)),
			zap.Error(err))
		return matched, true
	}

	for i := range resp.Data {
		rec := &resp.Data[i]
		if j := matchRecord(chunk, matched, rec); j >= 0 {
			matched[j] = promote(chunk[j], rec)
		}
	}

	if len(resp.NotFound) == 0 {
		return matched, false
	}

	missing := make([]string, len(resp.NotFound))
	for i, id := range resp.NotFound {
		missing[i] = id.String()
	}
	r.logger.Warn("cards not found in catalog",
		zap.Int("count", len(resp.NotFound)),
		zap.Strings("identifiers", missing))

	if r.retryNotFound {
		r.retryByName(ctx, chunk, matched, resp.NotFound)
	}

	return matched, false
}

// retryByName looks up not-found entries once more by front-face name only.
// A failure here only loses the retry.
func (r *Resolver) retryByName(ctx context.Context, chunk []UnresolvedCardEntry, matched []*ResolvedCardEntry, notFound []scryfall.CardIdentifier) {
	failed := make(map[string]bool, len(notFound))
	for _, id := range notFound {
		failed[identifierKey(id)] = true
	}

	candidates := make([]int, 0, len(notFound))
	identifiers := make([]scryfall.CardIdentifier, 0, len(notFound))
	for i, entry := range chunk {
		if matched[i] != nil || !failed[identifierKey(identifierFor(entry))] {
			continue
		}
		candidates = append(candidates, i)
		identifiers = append(identifiers, scryfall.CardIdentifier{Name: frontFace(entry.Name)})
	}
	if len(candidates) == 0 {
		return
	}

	resp, err := r.catalog.Collection(ctx, identifiers)
	if err != nil {
		r.logger.Error("name-only retry failed", zap.Int("size", len(candidates)), zap.Error(err))
		return
	}

	for i := range resp.Data {
		rec := &resp.Data[i]
		for _, j := range candidates {
			if matched[j] == nil && looseNameMatch(chunk[j].Name, rec) {
				matched[j] = promote(chunk[j], rec)
				break
			}
		}
	}
}

// identifierFor builds the most specific lookup identifier the entry allows.
func identifierFor(entry UnresolvedCardEntry) scryfall.CardIdentifier {
	set := strings.ToLower(entry.Set)
	switch {
	case entry.HasPrinting():
		return scryfall.CardIdentifier{Set: set, CollectorNumber: entry.CollectorNumber}
	case set != "":
		return scryfall.CardIdentifier{Name: entry.Name, Set: set}
	default:
		return scryfall.CardIdentifier{Name: entry.Name}
	}
}

// identifierKey normalises an identifier so request and not_found entries
// can be compared.
func identifierKey(id scryfall.CardIdentifier) string {
	if id.Set != "" && id.CollectorNumber != "" {
		return strings.ToLower(id.Set) + ":" + id.CollectorNumber
	}
	return strings.ToLower(id.Name) + "|" + strings.ToLower(id.Set)
}

// matchRecord returns the chunk position the record belongs to, or -1.
//
// Entries pinning a printing match only on (set, collector number). Other
// entries match by case-insensitive name, also accepting the record's first
// face name; among those, an entry that requested the record's set wins
// over one that requested no set, which wins over one that requested a
// different set. Each position is consumed at most once.
func matchRecord(chunk []UnresolvedCardEntry, matched []*ResolvedCardEntry, rec *scryfall.Record) int {
	for i, entry := range chunk {
		if matched[i] == nil && entry.HasPrinting() &&
			strings.EqualFold(entry.Set, rec.SetCode) && entry.CollectorNumber == rec.CollectorNumber {
			return i
		}
	}

	noSet, otherSet := -1, -1
	for i, entry := range chunk {
		if matched[i] != nil || entry.HasPrinting() || !nameMatches(entry.Name, rec) {
			continue
		}
		switch {
		case entry.Set != "" && strings.EqualFold(entry.Set, rec.SetCode):
			return i
		case entry.Set == "" && noSet < 0:
			noSet = i
		case entry.Set != "" && otherSet < 0:
			otherSet = i
		}
	}

	if noSet >= 0 {
		return noSet
	}
	return otherSet
}

func nameMatches(name string, rec *scryfall.Record) bool {
	if strings.EqualFold(name, rec.Name) {
		return true
	}
	face := rec.FrontFaceName()
	return face != "" && strings.EqualFold(name, face)
}

// looseNameMatch additionally accepts "Front" against "Front // Back" in
// either direction.
func looseNameMatch(name string, rec *scryfall.Record) bool {
	if nameMatches(name, rec) {
		return true
	}
	in := strings.ToLower(name)
	out := strings.ToLower(rec.Name)
	return strings.HasPrefix(out, in+" //") || strings.HasPrefix(in, out+" //")
}

func frontFace(name string) string {
	front, _, _ := strings.Cut(name, " // ")
	return strings.TrimSpace(front)
}

// promote merges a catalog record into the entry it matched.
func promote(entry UnresolvedCardEntry, rec *scryfall.Record) *ResolvedCardEntry {
	resolved := &ResolvedCardEntry{
		UnresolvedCardEntry:     entry,
		CatalogID:               rec.ID,
		OfficialName:            rec.Name,
		OfficialSet:             rec.SetCode,
		OfficialCollectorNumber: rec.CollectorNumber,
		ImageURL:                rec.ImageURL(),
		CatalogData:             rec.Raw,
	}
	resolved.Name = rec.Name
	resolved.Set = rec.SetCode
	resolved.CollectorNumber = rec.CollectorNumber
	return resolved
}
