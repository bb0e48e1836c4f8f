package standardize

import (
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/stats"
)

// dictionarySampleSize bounds the sample values recorded per field.
const dictionarySampleSize = 3

// DeriveDictionary profiles every schema field of the final batch: null
// counts and rate, distinct-value cardinality, a few sample values, and the
// numeric range where the column is numeric. Entries appear in schema order
// so the dictionary is deterministic for a given batch.
func DeriveDictionary(b *model.Batch) []model.DictionaryEntry {
	total := b.Len()
	entries := make([]model.DictionaryEntry, 0, len(b.Schema.Fields))

	for _, f := range b.Schema.Fields {
		snapshot := stats.Snap(b, f.Name)
		nonNull := snapshot.Count()
		null := total - nonNull

		entry := model.DictionaryEntry{
			Field:       f.Name,
			Type:        f.Type,
			NonNull:     nonNull,
			Null:        null,
			Cardinality: snapshot.Cardinality(),
			Samples:     snapshot.Samples(dictionarySampleSize),
		}
		if total > 0 {
			entry.NullRate = float64(null) / float64(total)
		}
		if min, max, ok := snapshot.MinMax(); ok {
			entry.Min, entry.Max = &min, &max
		}
		entries = append(entries, entry)
	}
	return entries
}
