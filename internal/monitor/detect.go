package monitor

import (
	"slices"
	"time"
)

// classify decides whether moving from prev to cur is a candidate
// transition. seen is false when there is no prior record for the key.
func classify(prev string, seen bool, cur string) (ChangeType, bool) {
	switch {
	case !seen && cur != StatusUnavailable:
		return ChangeAvailable, true
	case seen && prev == StatusUnavailable && cur != StatusUnavailable:
		return ChangeAvailable, true
	case seen && prev != StatusUnavailable && cur == StatusUnavailable:
		return ChangeUnavailable, true
	}
	return "", false
}

func (s Subscription) watches(location string) bool {
	return len(s.Locations) == 0 || slices.Contains(s.Locations, location)
}

func (s Subscription) wants(c ChangeType) bool {
	switch c {
	case ChangeAvailable:
		return s.NotifyAvailable
	case ChangeUnavailable:
		return s.NotifyUnavailable
	}
	return false
}

// detect compares readings against the subscription's last known state and
// returns the transitions the subscriber asked to hear about. It does not
// modify sub.
func detect(sub *Subscription, readings []Reading, now time.Time) []Event {
	var events []Event
	for _, r := range readings {
		if !sub.watches(r.Location) {
			continue
		}
		prev, seen := sub.LastStatus[r.Key]
		change, ok := classify(prev, seen, r.Status)
		if !ok || !sub.wants(change) {
			continue
		}
		events = append(events, Event{
			ProductCode:    sub.ProductCode,
			DisplayName:    sub.DisplayName,
			Location:       r.Location,
			StatusKey:      r.Key,
			Status:         r.Status,
			PreviousStatus: prev,
			HadPrevious:    seen,
			Change:         change,
			Config:         r.Config,
			At:             now,
		})
	}
	return events
}

// apply runs detection for one snapshot, records history for every event and
// replaces LastStatus with the normalized snapshot. Keys missing from the
// snapshot are forgotten.
func apply(sub *Subscription, snap Snapshot, now time.Time) []Event {
	readings := Readings(snap)
	events := detect(sub, readings, now)
	for _, ev := range events {
		appendHistory(sub, ev)
	}
	last := make(map[string]string, len(readings))
	for _, r := range readings {
		last[r.Key] = r.Status
	}
	sub.LastStatus = last
	return events
}
