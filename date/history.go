package date

import (
	"iter"
	"slices"
)

// History stores a chronological series of values, each keyed by a Date.
// Dates are unique and the series is always sorted, so lookups by exact
// date and by "latest on or before" are both O(log n). It is the backing
// container for price series and split-factor step functions.
type History[T any] struct {
	days   []Date
	values []T
}

// Len returns the number of entries.
func (h *History[T]) Len() int { return len(h.days) }

// Clear removes all entries.
func (h *History[T]) Clear() {
	h.days = h.days[:0]
	h.values = h.values[:0]
}

// search locates 'day' in the sorted day index.
func (h *History[T]) search(day Date) (int, bool) {
	return slices.BinarySearchFunc(h.days, day, Date.Compare)
}

// Append inserts a value at the given date, keeping the series sorted.
// An existing value on the same date is overwritten.
func (h *History[T]) Append(on Date, v T) *History[T] {
	i, found := h.search(on)
	if found {
		h.values[i] = v
		return h
	}
	h.days = slices.Insert(h.days, i, on)
	h.values = slices.Insert(h.values, i, v)
	return h
}

// Get returns the value recorded exactly at 'day'.
func (h *History[T]) Get(day Date) (T, bool) {
	if i, found := h.search(day); found {
		return h.values[i], true
	}
	var zero T
	return zero, false
}

// ValueAsOf returns the value at 'day' or, failing that, the most recent
// value before it. ok is false when no entry exists on or before 'day'.
func (h *History[T]) ValueAsOf(day Date) (v T, ok bool) {
	i, found := h.search(day)
	if found {
		return h.values[i], true
	}
	if i == 0 {
		var zero T
		return zero, false
	}
	return h.values[i-1], true
}

// First returns the earliest entry, or ok=false when empty.
func (h *History[T]) First() (day Date, v T, ok bool) {
	if len(h.days) == 0 {
		var zero T
		return Date{}, zero, false
	}
	return h.days[0], h.values[0], true
}

// Latest returns the most recent entry, or ok=false when empty.
func (h *History[T]) Latest() (day Date, v T, ok bool) {
	if len(h.days) == 0 {
		var zero T
		return Date{}, zero, false
	}
	last := len(h.days) - 1
	return h.days[last], h.values[last], true
}

// Values iterates all entries in chronological order.
func (h *History[T]) Values() iter.Seq2[Date, T] {
	return func(yield func(Date, T) bool) {
		for i, on := range h.days {
			if !yield(on, h.values[i]) {
				return
			}
		}
	}
}
