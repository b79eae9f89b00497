package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type entryKind int

const (
	entryFlat entryKind = iota + 1
	entryConfigured
)

// Entry is one value of an availability snapshot: either a bare status for
// the location named by its key, or per-location statuses of one hardware
// configuration.
type Entry struct {
	kind      entryKind
	status    string
	config    Config
	locations map[string]string
}

type Config struct {
	Memory  string `json:"memory"`
	Storage string `json:"storage"`
}

func (c Config) Display() string {
	return orPlaceholder(c.Memory) + " + " + orPlaceholder(c.Storage)
}

// Snapshot maps a location id (flat entries) or a configuration key
// (configured entries) to its availability.
type Snapshot map[string]Entry

// Reading is a single normalized status observation.
type Reading struct {
	Key      string
	Location string
	Status   string
	Config   *Config
}

func FlatStatus(status string) Entry {
	return Entry{kind: entryFlat, status: status}
}

func ConfiguredStatus(memory, storage string, perLocation map[string]string) Entry {
	locs := make(map[string]string, len(perLocation))
	for dc, st := range perLocation {
		locs[dc] = st
	}
	return Entry{
		kind:      entryConfigured,
		config:    Config{Memory: memory, Storage: storage},
		locations: locs,
	}
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = FlatStatus(s)
		return nil
	}

	var raw struct {
		Datacenters map[string]string `json:"datacenters"`
		Memory      string            `json:"memory"`
		Storage     string            `json:"storage"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode snapshot entry: %w", err)
	}
	*e = ConfiguredStatus(raw.Memory, raw.Storage, raw.Datacenters)
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.kind == entryFlat {
		return json.Marshal(e.status)
	}
	return json.Marshal(struct {
		Datacenters map[string]string `json:"datacenters"`
		Memory      string            `json:"memory"`
		Storage     string            `json:"storage"`
	}{e.locations, e.config.Memory, e.config.Storage})
}

// Readings flattens a snapshot into status observations ordered by key.
func Readings(s Snapshot) []Reading {
	var out []Reading
	for key, e := range s {
		switch e.kind {
		case entryFlat:
			out = append(out, Reading{Key: key, Location: key, Status: e.status})
		case entryConfigured:
			for dc, st := range e.locations {
				cfg := e.config
				out = append(out, Reading{
					Key:      StatusKey(dc, key),
					Location: dc,
					Status:   st,
					Config:   &cfg,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func Normalize(s Snapshot) map[string]string {
	out := make(map[string]string, len(s))
	for _, r := range Readings(s) {
		out[r.Key] = r.Status
	}
	return out
}

func StatusKey(location, configKey string) string {
	if configKey == "" {
		return location
	}
	return location + "|" + configKey
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
