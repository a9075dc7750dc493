package refdata

import (
	"time"
)

// SubRow is one flat input row for a two-level index.
type SubRow[T any] struct {
	Code    string
	SubCode string
	Row     Row[T]
}

// SubIndex is a two-level index: code, then sub-code, then an ordered
// validity entry. Used by sources where a single code legitimately owns
// several keyed child histories (generic lookups, employer size bands,
// a qualification's funding categories).
type SubIndex[T any] struct {
	entries map[string]map[string]Entry[T]
}

// BuildSub constructs a SubIndex. The Entry ordering and non-overlap
// invariants apply at the leaf (code, sub-code) level.
func BuildSub[T any](source string, rows []SubRow[T]) (SubIndex[T], *Diagnostics) {
	diag := &Diagnostics{Source: source, Total: len(rows)}

	type leaf struct{ code, sub string }
	groups := make(map[leaf][]Variant[T])
	for _, r := range rows {
		code := NormalizeCode(r.Code)
		sub := NormalizeCode(r.SubCode)
		if code == "" || sub == "" {
			diag.Dropped++
			continue
		}
		k := leaf{code, sub}
		groups[k] = append(groups[k], Variant[T]{Window: r.Row.Window, Value: r.Row.Value})
	}

	entries := make(map[string]map[string]Entry[T])
	for k, variants := range groups {
		subMap := entries[k.code]
		if subMap == nil {
			subMap = make(map[string]Entry[T])
			entries[k.code] = subMap
		}
		subMap[k.sub] = Entry[T]{variants: orderVariants(k.code+"/"+k.sub, variants, diag)}
	}

	return SubIndex[T]{entries: entries}, diag
}

// Contains reports whether the top-level code is known.
func (ix SubIndex[T]) Contains(code string) bool {
	_, ok := ix.entries[NormalizeCode(code)]
	return ok
}

// ContainsSub reports whether the (code, sub-code) pair is known.
func (ix SubIndex[T]) ContainsSub(code, sub string) bool {
	subMap, ok := ix.entries[NormalizeCode(code)]
	if !ok {
		return false
	}
	_, ok = subMap[NormalizeCode(sub)]
	return ok
}

// Lookup returns the entry at (code, sub-code).
func (ix SubIndex[T]) Lookup(code, sub string) (Entry[T], bool) {
	subMap, ok := ix.entries[NormalizeCode(code)]
	if !ok {
		return Entry[T]{}, false
	}
	e, ok := subMap[NormalizeCode(sub)]
	return e, ok
}

// AsOf returns the value at (code, sub-code) valid on date d.
func (ix SubIndex[T]) AsOf(code, sub string, d time.Time) (T, bool) {
	e, ok := ix.Lookup(code, sub)
	if !ok {
		var zero T
		return zero, false
	}
	return e.AsOf(d)
}

// SubCodes returns the known sub-codes for a code, in no particular order.
func (ix SubIndex[T]) SubCodes(code string) []string {
	subMap, ok := ix.entries[NormalizeCode(code)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(subMap))
	for sub := range subMap {
		out = append(out, sub)
	}
	return out
}

// Len returns the number of top-level codes.
func (ix SubIndex[T]) Len() int {
	return len(ix.entries)
}
