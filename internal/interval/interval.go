// Package interval answers temporal containment and overlap questions over
// validity windows. Everything here is pure: no side effects, no allocation.
package interval

import "time"

// Window is a validity span. To is nil for open-ended windows.
type Window struct {
	From time.Time
	To   *time.Time
}

// Open reports whether the window has no end date.
func (w Window) Open() bool {
	return w.To == nil
}

// Closed builds a bounded window.
func Closed(from, to time.Time) Window {
	return Window{From: from, To: &to}
}

// From builds an open-ended window starting at from.
func From(from time.Time) Window {
	return Window{From: from}
}

// Contains reports whether d falls inside w. The end date is inclusive:
// a window [from, to] contains both from and to.
func Contains(w Window, d time.Time) bool {
	if d.Before(w.From) {
		return false
	}
	return w.To == nil || !d.After(*w.To)
}

// Overlaps reports whether a and b share at least one day. An open end is
// treated as extending to +infinity, so two open windows always overlap.
func Overlaps(a, b Window) bool {
	if a.To != nil && a.To.Before(b.From) {
		return false
	}
	if b.To != nil && b.To.Before(a.From) {
		return false
	}
	return true
}
