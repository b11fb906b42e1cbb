package date

import (
	"testing"
	"time"
)

func TestHistoryAppendKeepsSorted(t *testing.T) {
	var h History[float64]
	h.Append(New(2024, time.March, 3), 3.0)
	h.Append(New(2024, time.March, 1), 1.0)
	h.Append(New(2024, time.March, 2), 2.0)

	var days []Date
	for on := range h.Values() {
		days = append(days, on)
	}
	for i := 1; i < len(days); i++ {
		if !days[i-1].Before(days[i]) {
			t.Fatalf("history not sorted: %v", days)
		}
	}
}

func TestHistoryAppendOverwrites(t *testing.T) {
	var h History[float64]
	on := New(2024, time.March, 1)
	h.Append(on, 1.0)
	h.Append(on, 9.0)
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
	if v, _ := h.Get(on); v != 9.0 {
		t.Errorf("Get() = %v, want 9.0 (last write wins)", v)
	}
}

func TestHistoryValueAsOf(t *testing.T) {
	var h History[float64]
	h.Append(New(2024, time.March, 1), 1.0)
	h.Append(New(2024, time.March, 5), 5.0)

	cases := []struct {
		day    Date
		want   float64
		wantOK bool
	}{
		{New(2024, time.February, 28), 0, false}, // before first entry
		{New(2024, time.March, 1), 1.0, true},    // exact
		{New(2024, time.March, 3), 1.0, true},    // gap uses prior value
		{New(2024, time.March, 5), 5.0, true},
		{New(2024, time.March, 9), 5.0, true}, // after last entry
	}
	for _, tc := range cases {
		got, ok := h.ValueAsOf(tc.day)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("ValueAsOf(%s) = %v, %v; want %v, %v", tc.day, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestHistoryFirstLatest(t *testing.T) {
	var h History[string]
	if _, _, ok := h.First(); ok {
		t.Error("First() on empty history should report ok=false")
	}
	h.Append(New(2024, time.March, 2), "b")
	h.Append(New(2024, time.March, 1), "a")
	if day, v, _ := h.First(); day != New(2024, time.March, 1) || v != "a" {
		t.Errorf("First() = %s, %s", day, v)
	}
	if day, v, _ := h.Latest(); day != New(2024, time.March, 2) || v != "b" {
		t.Errorf("Latest() = %s, %s", day, v)
	}
}
