package dose

import (
	"sort"
	"time"
)

// Urgency ranks a pending instance relative to now
type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"
	UrgencyDue      Urgency = "due"
	UrgencyUpcoming Urgency = "upcoming"
)

// GraceWindow is the half-width of the "due" band around the due time.
const GraceWindow = 15 * time.Minute

// DueListWindow is how far ahead of now the due-medications list reaches.
// Instances further out exist but are not surfaced yet.
const DueListWindow = 60 * time.Minute

// Classify assigns an urgency tier from the distance between due time
// and now: more than 15 minutes late is overdue, within 15 minutes
// either side is due, anything later is upcoming.
func Classify(now, due time.Time) Urgency {
	delta := due.Sub(now)
	switch {
	case delta <= -GraceWindow:
		return UrgencyOverdue
	case delta <= GraceWindow:
		return UrgencyDue
	default:
		return UrgencyUpcoming
	}
}

var urgencyRank = map[Urgency]int{
	UrgencyOverdue:  0,
	UrgencyDue:      1,
	UrgencyUpcoming: 2,
}

// DueItem is one entry of the due-medications list
type DueItem struct {
	Instance       Instance
	Urgency        Urgency
	MedicationName string
}

// SortDueItems orders overdue first, then due, then upcoming; ties are
// broken by ascending due time.
func SortDueItems(items []DueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := urgencyRank[items[i].Urgency], urgencyRank[items[j].Urgency]
		if ri != rj {
			return ri < rj
		}
		return items[i].Instance.DueAt.Before(items[j].Instance.DueAt)
	})
}
