// Package compare provides the reusable pairwise, sequential and batch
// grouping algorithms shared by the rule catalogue. Rules supply the
// predicates; this package owns the ordering and empty-input semantics:
// nil or empty collections never match and never fault.
package compare

import (
	"sort"
	"strings"

	"github.com/openlearn/kestrel/internal/interval"
)

// ForAnyOtherMatching returns the records for which at least one *other*
// record in the same collection satisfies pred. Input order is preserved
// and each record appears at most once. Cost is O(n²); n is the number of
// aims per learner, bounded in the tens in practice.
func ForAnyOtherMatching[T any](records []T, pred func(a, b T) bool) []T {
	if len(records) < 2 {
		return nil
	}
	var out []T
	for i, a := range records {
		for j, b := range records {
			if i == j {
				continue
			}
			if pred(a, b) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// OverlapsInSequence sorts the records by window start (stable, so equal
// starts keep input order) and walks adjacent pairs, flagging the earlier
// record when its window is open-ended or its end falls on or after the
// next record's start. A gap of at least one day between end and next
// start is clean. This is the O(n log n) form used where only
// contiguous-time conflicts matter.
func OverlapsInSequence[T any](records []T, window func(T) interval.Window) []T {
	if len(records) < 2 {
		return nil
	}

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return window(records[idx[a]]).From.Before(window(records[idx[b]]).From)
	})

	var out []T
	for i := 1; i < len(idx); i++ {
		prev := window(records[idx[i-1]])
		next := window(records[idx[i]])
		if prev.Open() || !prev.To.Before(next.From) {
			out = append(out, records[idx[i-1]])
		}
	}
	return out
}

// GroupDuplicates groups the items by a case-insensitive key and returns
// every member of any group with more than one member, preserving input
// order. Items with an empty key are ignored.
func GroupDuplicates[T any](items []T, key func(T) string) []T {
	return GroupNearDuplicates(items, key, nil)
}

// GroupNearDuplicates groups the items by a case-insensitive key, then
// within each multi-member group flags every member that stands in the
// pairwise condition with at least one other member. A nil condition
// means exact duplicates: every member of a multi-member group is flagged.
// Input order is preserved.
func GroupNearDuplicates[T any](items []T, key func(T) string, pred func(a, b T) bool) []T {
	if len(items) < 2 {
		return nil
	}

	groups := make(map[string][]int)
	for i, item := range items {
		k := normalizeKey(key(item))
		if k == "" {
			continue
		}
		groups[k] = append(groups[k], i)
	}

	flagged := make([]bool, len(items))
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		for _, i := range members {
			if pred == nil {
				flagged[i] = true
				continue
			}
			for _, j := range members {
				if i != j && pred(items[i], items[j]) {
					flagged[i] = true
					break
				}
			}
		}
	}

	var out []T
	for i, f := range flagged {
		if f {
			out = append(out, items[i])
		}
	}
	return out
}

func normalizeKey(k string) string {
	return strings.ToUpper(strings.TrimSpace(k))
}
