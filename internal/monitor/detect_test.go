package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSub(prefs Preferences, locations ...string) *Subscription {
	return &Subscription{
		ProductCode:       "24sk10",
		Locations:         locations,
		NotifyAvailable:   prefs.NotifyAvailable,
		NotifyUnavailable: prefs.NotifyUnavailable,
		LastStatus:        map[string]string{},
		History:           []HistoryEntry{},
	}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		prev   string
		seen   bool
		cur    string
		change ChangeType
		ok     bool
	}{
		{"first available", "", false, "available", ChangeAvailable, true},
		{"first unavailable is quiet", "", false, StatusUnavailable, "", false},
		{"back in stock", StatusUnavailable, true, "72H", ChangeAvailable, true},
		{"sold out", "1H-low", true, StatusUnavailable, ChangeUnavailable, true},
		{"restated unavailable", StatusUnavailable, true, StatusUnavailable, "", false},
		{"available value changed", "1H-low", true, "1H-high", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, ok := classify(tt.prev, tt.seen, tt.cur)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.change, change)
		})
	}
}

func TestApply_QuietFirstObservation(t *testing.T) {
	sub := newSub(Preferences{NotifyAvailable: true, NotifyUnavailable: true})

	events := apply(sub, Snapshot{"fsn1": FlatStatus(StatusUnavailable)}, t0)
	assert.Empty(t, events)
	assert.Empty(t, sub.History)
	assert.Equal(t, StatusUnavailable, sub.LastStatus["fsn1"])
}

func TestApply_RestatedUnavailableNeverNotifies(t *testing.T) {
	sub := newSub(Preferences{NotifyAvailable: true, NotifyUnavailable: true})
	sub.LastStatus["fsn1"] = StatusUnavailable

	events := apply(sub, Snapshot{"fsn1": FlatStatus(StatusUnavailable)}, t0)
	assert.Empty(t, events)
	assert.Empty(t, sub.History)
}

func TestApply_BackInStock(t *testing.T) {
	sub := newSub(DefaultPreferences())
	apply(sub, Snapshot{"fsn1": FlatStatus(StatusUnavailable)}, t0)

	events := apply(sub, Snapshot{"fsn1": FlatStatus("available")}, t0.Add(time.Minute))
	require.Len(t, events, 1)
	assert.Equal(t, "fsn1", events[0].Location)
	assert.Equal(t, ChangeAvailable, events[0].Change)
	assert.Equal(t, StatusUnavailable, events[0].PreviousStatus)
	assert.True(t, events[0].HadPrevious)
	assert.Equal(t, "available", sub.LastStatus["fsn1"])

	require.Len(t, sub.History, 1)
	assert.Equal(t, ChangeAvailable, sub.History[0].ChangeType)
	assert.NotEmpty(t, sub.History[0].ID)
}

func TestApply_UnavailableGatedByPreference(t *testing.T) {
	sub := newSub(DefaultPreferences())
	sub.LastStatus["fsn1"] = "available"

	events := apply(sub, Snapshot{"fsn1": FlatStatus(StatusUnavailable)}, t0)
	assert.Empty(t, events)
	assert.Empty(t, sub.History)
	assert.Equal(t, StatusUnavailable, sub.LastStatus["fsn1"])

	sub.NotifyUnavailable = true
	sub.LastStatus["fsn1"] = "available"
	events = apply(sub, Snapshot{"fsn1": FlatStatus(StatusUnavailable)}, t0)
	require.Len(t, events, 1)
	assert.Equal(t, ChangeUnavailable, events[0].Change)
}

func TestApply_ConfiguredFirstObservation(t *testing.T) {
	sub := newSub(DefaultPreferences())
	snap := Snapshot{
		"X.32GB.512GB": ConfiguredStatus("32GB", "512GB", map[string]string{"rbx": "available"}),
	}

	events := apply(sub, snap, t0)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Config)
	assert.Equal(t, "32GB + 512GB", events[0].Config.Display())
	assert.Equal(t, "rbx", events[0].Location)
	assert.Equal(t, map[string]string{"rbx|X.32GB.512GB": "available"}, sub.LastStatus)
	require.Len(t, sub.History, 1)
	assert.Equal(t, &Config{Memory: "32GB", Storage: "512GB"}, sub.History[0].Config)
}

func TestApply_LocationFilter(t *testing.T) {
	sub := newSub(DefaultPreferences(), "gra")
	events := apply(sub, Snapshot{
		"gra": FlatStatus("available"),
		"rbx": FlatStatus("available"),
	}, t0)

	require.Len(t, events, 1)
	assert.Equal(t, "gra", events[0].Location)
	// unwatched locations are still tracked
	assert.Equal(t, "available", sub.LastStatus["rbx"])
}

func TestApply_MissingKeysAreForgotten(t *testing.T) {
	sub := newSub(DefaultPreferences())
	sub.LastStatus = map[string]string{"fsn1": "available", "nbg1": StatusUnavailable}

	apply(sub, Snapshot{"fsn1": FlatStatus("available")}, t0)
	assert.Equal(t, map[string]string{"fsn1": "available"}, sub.LastStatus)
}

func TestAppendHistory_EvictsOldest(t *testing.T) {
	sub := newSub(DefaultPreferences())
	for i := 0; i < MaxHistory+1; i++ {
		appendHistory(sub, Event{
			Location: fmt.Sprintf("dc%d", i),
			Status:   "available",
			Change:   ChangeAvailable,
			At:       t0.Add(time.Duration(i) * time.Second),
		})
	}

	require.Len(t, sub.History, MaxHistory)
	assert.Equal(t, "dc1", sub.History[0].Location)
	assert.Equal(t, fmt.Sprintf("dc%d", MaxHistory), sub.History[MaxHistory-1].Location)
	for i := 1; i < len(sub.History); i++ {
		assert.True(t, sub.History[i].Timestamp.After(sub.History[i-1].Timestamp))
	}
}
