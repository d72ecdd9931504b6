package feed

import (
	"slices"
	"sort"
	"time"

	"backend-busboxd/internal/trip"
)

// DefaultWindow is the largest gap between two consecutive trips of one user
// that still merges them into the same item.
const DefaultWindow = 2 * time.Hour

// Item is one entry of the activity feed: a single trip, or an integration of
// consecutive trips by the same user. Trips are most recent first.
type Item struct {
	User             string      `json:"user"`
	ReferenceInstant time.Time   `json:"reference_instant"`
	Trips            []trip.Trip `json:"trips"`
	Count            int         `json:"count"`
	Integration      bool        `json:"integration"`
}

type timedTrip struct {
	at   time.Time
	trip trip.Trip
}

// BuildFeed groups trips per user into clusters whose neighbours are at most
// window apart and returns the items newest first. Trips whose date and time
// do not parse in loc are left out. Items with the same reference instant
// keep the order in which their users first appear in trips.
func BuildFeed(trips []trip.Trip, window time.Duration, loc *time.Location) []Item {
	if loc == nil {
		loc = time.UTC
	}

	var order []string
	byUser := map[string][]timedTrip{}
	for _, t := range trips {
		at, ok := t.OccurredAt(loc)
		if !ok {
			continue
		}
		if _, seen := byUser[t.User]; !seen {
			order = append(order, t.User)
		}
		byUser[t.User] = append(byUser[t.User], timedTrip{at: at, trip: t})
	}

	items := []Item{}
	for _, user := range order {
		items = append(items, clusterUser(user, byUser[user], window)...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ReferenceInstant.After(items[j].ReferenceInstant)
	})
	return items
}

func clusterUser(user string, trips []timedTrip, window time.Duration) []Item {
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].at.Before(trips[j].at)
	})

	var items []Item
	start := 0
	for i := 1; i <= len(trips); i++ {
		if i < len(trips) && trips[i].at.Sub(trips[i-1].at) <= window {
			continue
		}
		items = append(items, newItem(user, trips[start:i]))
		start = i
	}
	return items
}

func newItem(user string, cluster []timedTrip) Item {
	out := make([]trip.Trip, 0, len(cluster))
	for _, tt := range cluster {
		out = append(out, tt.trip)
	}
	slices.Reverse(out)
	return Item{
		User:             user,
		ReferenceInstant: cluster[len(cluster)-1].at,
		Trips:            out,
		Count:            len(out),
		Integration:      len(out) > 1,
	}
}
