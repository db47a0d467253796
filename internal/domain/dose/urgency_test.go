package dose

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		offset time.Duration
		want   Urgency
	}{
		{-2 * time.Hour, UrgencyOverdue},
		{-20 * time.Minute, UrgencyOverdue},
		{-16 * time.Minute, UrgencyOverdue},
		{-15 * time.Minute, UrgencyOverdue},
		{-14 * time.Minute, UrgencyDue},
		{0, UrgencyDue},
		{10 * time.Minute, UrgencyDue},
		{15 * time.Minute, UrgencyDue},
		{16 * time.Minute, UrgencyUpcoming},
		{45 * time.Minute, UrgencyUpcoming},
	}

	for _, tc := range tests {
		if got := Classify(now, now.Add(tc.offset)); got != tc.want {
			t.Errorf("Classify(due=now%+v) = %s, want %s", tc.offset, got, tc.want)
		}
	}
}

func TestSortDueItems(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	item := func(id string, offset time.Duration) DueItem {
		due := now.Add(offset)
		return DueItem{
			Instance: Instance{ID: id, DueAt: due},
			Urgency:  Classify(now, due),
		}
	}

	items := []DueItem{
		item("upcoming-late", 50*time.Minute),
		item("due-now", 0),
		item("overdue-old", -3*time.Hour),
		item("upcoming-soon", 20*time.Minute),
		item("overdue-recent", -30*time.Minute),
		item("due-soon", 10*time.Minute),
	}

	SortDueItems(items)

	want := []string{
		"overdue-old", "overdue-recent",
		"due-now", "due-soon",
		"upcoming-soon", "upcoming-late",
	}
	for i, w := range want {
		if items[i].Instance.ID != w {
			t.Errorf("position %d: got %s, want %s", i, items[i].Instance.ID, w)
		}
	}
}
