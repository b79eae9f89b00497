package monitor

import (
	"time"
)

const (
	StatusUnavailable = "unavailable"

	MaxHistory         = 100
	MinCheckInterval   = 60
	placeholder        = "N/A"
	timestampLayout    = "2006-01-02 15:04:05"
	defaultThrottle    = time.Second
	defaultStopTimeout = 3 * time.Second
	deliverTimeout     = 30 * time.Second
)

type ChangeType string

const (
	ChangeAvailable   ChangeType = "available"
	ChangeUnavailable ChangeType = "unavailable"
)

type Preferences struct {
	NotifyAvailable   bool
	NotifyUnavailable bool
}

func DefaultPreferences() Preferences {
	return Preferences{NotifyAvailable: true}
}

// Subscription is keyed by ProductCode. JSON names match the state files
// written by earlier releases so restored state keeps working.
type Subscription struct {
	ProductCode       string            `json:"planCode"`
	Locations         []string          `json:"datacenters"`
	NotifyAvailable   bool              `json:"notifyAvailable"`
	NotifyUnavailable bool              `json:"notifyUnavailable"`
	LastStatus        map[string]string `json:"lastStatus"`
	CreatedAt         time.Time         `json:"createdAt"`
	History           []HistoryEntry    `json:"history"`
	DisplayName       string            `json:"serverName,omitempty"`
}

type HistoryEntry struct {
	ID             string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Location       string     `json:"datacenter"`
	Status         string     `json:"status"`
	ChangeType     ChangeType `json:"changeType"`
	PreviousStatus string     `json:"oldStatus,omitempty"`
	Config         *Config    `json:"config,omitempty"`
}

// Event is a transition that passed the subscription's preference gate.
type Event struct {
	ProductCode    string
	DisplayName    string
	Location       string
	StatusKey      string
	Status         string
	PreviousStatus string
	HadPrevious    bool
	Change         ChangeType
	Config         *Config
	At             time.Time
}

// Offering is one entry of the provider's catalog.
type Offering struct {
	ProductCode string `json:"planCode"`
	Name        string `json:"name,omitempty"`
	CPU         string `json:"cpu,omitempty"`
	Memory      string `json:"memory,omitempty"`
	Storage     string `json:"storage,omitempty"`
	Bandwidth   string `json:"bandwidth,omitempty"`
}

type Status struct {
	Running             bool           `json:"running"`
	SubscriptionsCount  int            `json:"subscriptions_count"`
	KnownOfferingsCount int            `json:"known_servers_count"`
	CheckInterval       int            `json:"check_interval"`
	Subscriptions       []Subscription `json:"subscriptions"`
}

func (s Subscription) label() string {
	if s.DisplayName != "" {
		return s.ProductCode + " (" + s.DisplayName + ")"
	}
	return s.ProductCode
}

func (s Subscription) clone() Subscription {
	out := s
	out.Locations = append([]string(nil), s.Locations...)
	out.LastStatus = make(map[string]string, len(s.LastStatus))
	for k, v := range s.LastStatus {
		out.LastStatus[k] = v
	}
	if s.History != nil {
		out.History = make([]HistoryEntry, len(s.History))
		for i, h := range s.History {
			if h.Config != nil {
				c := *h.Config
				h.Config = &c
			}
			out.History[i] = h
		}
	}
	return out
}
