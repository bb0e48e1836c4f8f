package cleansing

import (
	"context"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// keySeparator joins normalized key parts; it cannot occur in folded text.
const keySeparator = "\x1f"

// Deduplicator removes records sharing a normalized deduplication key.
// Within a duplicate group the first record by original batch order is
// retained (or the last when keep_last is set). Records matching only a
// subset of the key fields are reported as near-duplicates and never
// removed. Re-running on an already-deduplicated batch removes nothing.
type Deduplicator struct {
	keys     []string
	keepLast bool
	folder   cases.Caser
}

func newDeduplicator(cfg *config.PipelineConfig, schema model.Schema) (Cleanser, error) {
	return &Deduplicator{
		keys:     cfg.Dedup.Keys,
		keepLast: cfg.Dedup.KeepLast,
		folder:   cases.Fold(),
	}, nil
}

// Name implements Cleanser.
func (d *Deduplicator) Name() string {
	return config.StageDeduplicate
}

// Clean implements Cleanser.
func (d *Deduplicator) Clean(ctx context.Context, b *model.Batch) (*model.Batch, *model.ValidationReport, error) {
	report := model.NewValidationReport(b.ID, d.Name(), b.Len())
	if len(d.keys) == 0 || b.Len() == 0 {
		return b, report, nil
	}

	fullKeys := make([]string, len(b.Records))
	parts := make([][]string, len(b.Records))
	for i, r := range b.Records {
		parts[i] = d.normalizedKeyParts(r)
		fullKeys[i] = strings.Join(parts[i], keySeparator)
	}

	// Pick the retained record of every duplicate group.
	retained := make(map[string]int, len(b.Records))
	for i := range b.Records {
		if _, ok := retained[fullKeys[i]]; !ok || d.keepLast {
			retained[fullKeys[i]] = i
		}
	}

	out := b.Clone()
	survivors := make([]*model.Record, 0, len(out.Records))
	removedCount := 0
	for i, r := range out.Records {
		if retained[fullKeys[i]] == i {
			survivors = append(survivors, r)
			continue
		}
		removedCount++
		report.Append(model.Issue{
			RuleID:   "dedup.duplicate",
			RecordID: r.ID,
			Field:    strings.Join(d.keys, ","),
			Severity: model.SeverityWarning,
			Message:  "record removed as a duplicate of record " + out.Records[retained[fullKeys[i]]].ID,
		})
	}

	d.reportNearDuplicates(out, fullKeys, parts, retained, report)

	if removedCount > 0 {
		logger.Infof("Deduplicator: removed %d duplicate records (%d -> %d).", removedCount, b.Len(), len(survivors))
	}
	out.Records = survivors
	return out, report, nil
}

// reportNearDuplicates flags retained records that agree with an earlier
// retained record on some, but not all, normalized key fields. They are
// reported only; removal requires a full key match.
func (d *Deduplicator) reportNearDuplicates(b *model.Batch, fullKeys []string, parts [][]string, retained map[string]int, report *model.ValidationReport) {
	if len(d.keys) < 2 {
		return
	}

	// Earliest retained record index per single key-field value.
	firstByPart := make([]map[string]int, len(d.keys))
	for k := range d.keys {
		firstByPart[k] = make(map[string]int)
	}

	for i, r := range b.Records {
		if retained[fullKeys[i]] != i {
			continue // removed duplicates are already reported
		}
		partial := false
		for k, part := range parts[i] {
			if part == "" {
				continue
			}
			if j, ok := firstByPart[k][part]; ok && fullKeys[j] != fullKeys[i] {
				partial = true
			}
			if _, ok := firstByPart[k][part]; !ok {
				firstByPart[k][part] = i
			}
		}
		if partial {
			report.Append(model.Issue{
				RuleID:   "dedup.near_duplicate",
				RecordID: r.ID,
				Field:    strings.Join(d.keys, ","),
				Severity: model.SeverityInfo,
				Message:  "record matches an earlier record on a subset of the deduplication key",
			})
		}
	}
}

// normalizedKeyParts folds each key field value for comparison: trimmed and
// case-folded; a missing value folds to the empty string.
func (d *Deduplicator) normalizedKeyParts(r *model.Record) []string {
	parts := make([]string, len(d.keys))
	for i, key := range d.keys {
		if r.IsMissing(key) {
			continue
		}
		parts[i] = d.folder.String(strings.TrimSpace(cast.ToString(r.Values[key])))
	}
	return parts
}
