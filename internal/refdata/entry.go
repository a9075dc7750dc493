// Package refdata turns flat reference collections into immutable, keyed,
// temporally-aware indices. Every index answers "is this code valid as of
// this date" in near-constant time; construction happens once, before any
// rule evaluation starts.
package refdata

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openlearn/kestrel/internal/interval"
)

// Variant is one validity-bounded projection of a reference payload.
type Variant[T any] struct {
	Window interval.Window
	Value  T
}

// Entry is the ordered set of variants for one code. Variants are sorted by
// window start and pairwise non-overlapping; at most one variant has an
// open end, and if present it is the last.
type Entry[T any] struct {
	variants []Variant[T]
}

// Variants returns the entry's variants in validity order. Callers must not
// modify the returned slice.
func (e Entry[T]) Variants() []Variant[T] {
	return e.variants
}

// AsOf returns the unique variant whose window contains d.
func (e Entry[T]) AsOf(d time.Time) (T, bool) {
	for _, v := range e.variants {
		if interval.Contains(v.Window, d) {
			return v.Value, true
		}
	}
	var zero T
	return zero, false
}

// Latest returns the variant with the latest start date.
func (e Entry[T]) Latest() (T, bool) {
	if len(e.variants) == 0 {
		var zero T
		return zero, false
	}
	return e.variants[len(e.variants)-1].Value, true
}

// Index maps normalized codes to entries. Indices are immutable once built.
type Index[T any] struct {
	entries map[string]Entry[T]
}

// Lookup returns the entry for a code.
func (ix Index[T]) Lookup(code string) (Entry[T], bool) {
	e, ok := ix.entries[NormalizeCode(code)]
	return e, ok
}

// AsOf returns the value valid for code on date d. An unknown code fails
// open: it returns false, never an error.
func (ix Index[T]) AsOf(code string, d time.Time) (T, bool) {
	e, ok := ix.entries[NormalizeCode(code)]
	if !ok {
		var zero T
		return zero, false
	}
	return e.AsOf(d)
}

// Contains reports whether the code is present at all, regardless of date.
func (ix Index[T]) Contains(code string) bool {
	_, ok := ix.entries[NormalizeCode(code)]
	return ok
}

// Len returns the number of distinct codes.
func (ix Index[T]) Len() int {
	return len(ix.entries)
}

// NormalizeCode upper-cases and trims a textual code. Codes are matched
// case-insensitively throughout.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Row is one flat input row for index construction.
type Row[T any] struct {
	Code   string
	Window interval.Window
	Value  T
}

// Diagnostics reports construction-time data anomalies for one source.
// Anomalies never abort indexing; well-formed entries are always kept.
type Diagnostics struct {
	Source string `json:"source"`

	// Total is the number of input rows seen.
	Total int `json:"total"`

	// Dropped counts rows with a missing code.
	Dropped int `json:"dropped"`

	// Duplicates lists (code, EffectiveFrom) pairs seen more than once.
	// Last write wins for the indexed value.
	Duplicates []string `json:"duplicates,omitempty"`

	// Overlaps lists codes whose validity windows violate the
	// non-overlap invariant.
	Overlaps []string `json:"overlaps,omitempty"`
}

// Clean reports whether construction saw no anomalies.
func (d *Diagnostics) Clean() bool {
	return d.Dropped == 0 && len(d.Duplicates) == 0 && len(d.Overlaps) == 0
}

// Build constructs an Index from flat rows: group by normalized code,
// stable-sort each group by window start, collapse duplicate starts
// (last write wins), and verify the non-overlap invariant.
func Build[T any](source string, rows []Row[T]) (Index[T], *Diagnostics) {
	diag := &Diagnostics{Source: source, Total: len(rows)}

	groups := make(map[string][]Variant[T])
	for _, r := range rows {
		code := NormalizeCode(r.Code)
		if code == "" {
			diag.Dropped++
			continue
		}
		groups[code] = append(groups[code], Variant[T]{Window: r.Window, Value: r.Value})
	}

	entries := make(map[string]Entry[T], len(groups))
	for code, variants := range groups {
		entries[code] = Entry[T]{variants: orderVariants(code, variants, diag)}
	}

	return Index[T]{entries: entries}, diag
}

// orderVariants sorts a group by start date (stable, so equal starts keep
// input order), drops duplicate starts keeping the last-submitted row, and
// records overlap violations.
func orderVariants[T any](code string, variants []Variant[T], diag *Diagnostics) []Variant[T] {
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Window.From.Before(variants[j].Window.From)
	})

	out := variants[:0]
	for _, v := range variants {
		if n := len(out); n > 0 && out[n-1].Window.From.Equal(v.Window.From) {
			diag.Duplicates = append(diag.Duplicates,
				fmt.Sprintf("%s@%s", code, v.Window.From.Format("2006-01-02")))
			out[n-1] = v
			continue
		}
		out = append(out, v)
	}

	for i := 1; i < len(out); i++ {
		prev := out[i-1].Window
		if prev.Open() || interval.Overlaps(prev, out[i].Window) {
			diag.Overlaps = append(diag.Overlaps, code)
			break
		}
	}

	return out
}
