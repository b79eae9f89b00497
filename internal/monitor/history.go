package monitor

import (
	"github.com/google/uuid"
)

// appendHistory records ev on sub and evicts the oldest entries beyond
// MaxHistory. Callers hold the registry lock.
func appendHistory(sub *Subscription, ev Event) {
	entry := HistoryEntry{
		ID:             uuid.NewString(),
		Timestamp:      ev.At,
		Location:       ev.Location,
		Status:         ev.Status,
		ChangeType:     ev.Change,
		PreviousStatus: ev.PreviousStatus,
	}
	if ev.Config != nil {
		c := *ev.Config
		entry.Config = &c
	}

	sub.History = append(sub.History, entry)
	if n := len(sub.History); n > MaxHistory {
		trimmed := make([]HistoryEntry, MaxHistory)
		copy(trimmed, sub.History[n-MaxHistory:])
		sub.History = trimmed
	}
}
