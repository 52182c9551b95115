package deckimport

// Consolidate merges entries that share a ConsolidationKey, summing their
// quantities. The first occurrence of each key keeps its position and its
// other fields. The input slice is not modified.
func Consolidate(entries []UnresolvedCardEntry) []UnresolvedCardEntry {
	result := make([]UnresolvedCardEntry, 0, len(entries))
	index := make(map[string]int, len(entries))

	for _, entry := range entries {
		key := entry.ConsolidationKey()
		if i, ok := index[key]; ok {
			result[i].Quantity += entry.Quantity
			continue
		}
		index[key] = len(result)
		result = append(result, entry)
	}

	return result
}
