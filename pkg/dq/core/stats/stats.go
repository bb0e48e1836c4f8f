// Package stats computes the per-column statistics the pipeline engines
// share: a Snapshot is an immutable view of one field's non-missing values,
// and a Context holds one Snapshot per field, computed once per batch so no
// rule or policy recomputes aggregate statistics.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cast"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
)

// Snapshot is a private, read-only snapshot of one field's non-missing
// values as observed in a single batch version. Every statistic is computed
// from this snapshot alone, so results never depend on what other fields or
// later stages have done.
type Snapshot struct {
	field  string
	values []interface{} // non-missing values in batch order
	sorted []float64     // ascending numeric values; nil when the column has none
}

// Snap collects the named field's non-missing values from the batch.
func Snap(b *model.Batch, field string) *Snapshot {
	s := &Snapshot{field: field}
	for _, r := range b.Records {
		if r.IsMissing(field) {
			continue
		}
		s.values = append(s.values, r.Values[field])
	}

	numeric := make([]float64, 0, len(s.values))
	for _, v := range s.values {
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) {
			numeric = nil
			break
		}
		numeric = append(numeric, f)
	}
	if len(numeric) > 0 {
		sort.Float64s(numeric)
		s.sorted = numeric
	}
	return s
}

// Field returns the snapshotted field name.
func (s *Snapshot) Field() string {
	return s.field
}

// Count returns the number of non-missing values.
func (s *Snapshot) Count() int {
	return len(s.values)
}

// IsNumeric reports whether every snapshotted value is numeric.
func (s *Snapshot) IsNumeric() bool {
	return s.sorted != nil
}

// Mean returns the arithmetic mean of the numeric values.
func (s *Snapshot) Mean() (float64, bool) {
	if len(s.sorted) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range s.sorted {
		sum += v
	}
	return sum / float64(len(s.sorted)), true
}

// StdDev returns the sample standard deviation of the numeric values.
func (s *Snapshot) StdDev() (float64, bool) {
	if len(s.sorted) < 2 {
		return 0, false
	}
	mean, _ := s.Mean()
	sum := 0.0
	for _, v := range s.sorted {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(s.sorted)-1)), true
}

// Quantile returns the p-quantile (0 <= p <= 1) of the numeric values using
// piecewise-linear interpolation at h = n*p + 0.5, so the quartiles of
// [20, 22, 24] are 20.5 and 23.5.
func (s *Snapshot) Quantile(p float64) (float64, bool) {
	n := len(s.sorted)
	if n == 0 {
		return 0, false
	}
	h := float64(n)*p + 0.5
	if h <= 1 {
		return s.sorted[0], true
	}
	if h >= float64(n) {
		return s.sorted[n-1], true
	}
	lo := int(math.Floor(h))
	frac := h - float64(lo)
	return s.sorted[lo-1] + frac*(s.sorted[lo]-s.sorted[lo-1]), true
}

// Without returns a numeric view of the snapshot with one occurrence of x
// removed, for leave-one-out statistics: a value judged against bounds
// derived from the remaining values cannot mask itself by inflating the
// spread it is measured against. Non-numeric snapshots and values not
// present are returned unchanged.
func (s *Snapshot) Without(x float64) *Snapshot {
	if s.sorted == nil {
		return s
	}
	i := sort.SearchFloat64s(s.sorted, x)
	if i >= len(s.sorted) || s.sorted[i] != x {
		return s
	}
	reduced := make([]float64, 0, len(s.sorted)-1)
	reduced = append(reduced, s.sorted[:i]...)
	reduced = append(reduced, s.sorted[i+1:]...)
	out := &Snapshot{field: s.field}
	if len(reduced) > 0 {
		out.sorted = reduced
		out.values = make([]interface{}, len(reduced))
		for j, v := range reduced {
			out.values[j] = v
		}
	}
	return out
}

// Median returns the 0.5-quantile of the numeric values.
func (s *Snapshot) Median() (float64, bool) {
	return s.Quantile(0.5)
}

// MinMax returns the smallest and largest numeric values.
func (s *Snapshot) MinMax() (min, max float64, ok bool) {
	if len(s.sorted) == 0 {
		return 0, 0, false
	}
	return s.sorted[0], s.sorted[len(s.sorted)-1], true
}

// Mode returns the most frequent value. Ties resolve deterministically by
// the lowest sort order among the tied values: numeric order for numeric
// columns, lexicographic order of the string form otherwise.
func (s *Snapshot) Mode() (interface{}, bool) {
	if len(s.values) == 0 {
		return nil, false
	}

	counts := make(map[string]int, len(s.values))
	first := make(map[string]interface{}, len(s.values))
	for _, v := range s.values {
		key := fmt.Sprintf("%v", v)
		counts[key]++
		if _, seen := first[key]; !seen {
			first[key] = v
		}
	}

	best := 0
	var candidates []string
	for key, c := range counts {
		switch {
		case c > best:
			best = c
			candidates = candidates[:0]
			candidates = append(candidates, key)
		case c == best:
			candidates = append(candidates, key)
		}
	}

	if s.IsNumeric() {
		sort.Slice(candidates, func(i, j int) bool {
			return cast.ToFloat64(first[candidates[i]]) < cast.ToFloat64(first[candidates[j]])
		})
	} else {
		sort.Strings(candidates)
	}
	return first[candidates[0]], true
}

// Cardinality returns the number of distinct values.
func (s *Snapshot) Cardinality() int {
	distinct := make(map[string]struct{}, len(s.values))
	for _, v := range s.values {
		distinct[fmt.Sprintf("%v", v)] = struct{}{}
	}
	return len(distinct)
}

// Samples returns up to n distinct values in first-observed order, rendered
// as strings.
func (s *Snapshot) Samples(n int) []string {
	seen := make(map[string]struct{}, n)
	var samples []string
	for _, v := range s.values {
		key := fmt.Sprintf("%v", v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		samples = append(samples, key)
		if len(samples) == n {
			break
		}
	}
	return samples
}

// Context holds one Snapshot per schema field of a batch. It is computed
// once before rule evaluation and is read-only afterwards, so concurrent
// rule workers can share it.
type Context struct {
	recordCount int
	snapshots   map[string]*Snapshot
}

// NewContext snapshots every schema field of the batch.
func NewContext(b *model.Batch) *Context {
	snapshots := make(map[string]*Snapshot, len(b.Schema.Fields))
	for _, f := range b.Schema.Fields {
		snapshots[f.Name] = Snap(b, f.Name)
	}
	return &Context{recordCount: b.Len(), snapshots: snapshots}
}

// RecordCount returns the number of records in the snapshotted batch.
func (c *Context) RecordCount() int {
	return c.recordCount
}

// Column returns the Snapshot for the named field.
func (c *Context) Column(field string) (*Snapshot, bool) {
	s, ok := c.snapshots[field]
	return s, ok
}
