package monitor

import (
	"sync"
	"time"
)

// SubscriptionRequest describes a subscription to create or reconfigure.
// LastStatus and History are only used when the subscription is new; they
// let a host restore state saved by a previous run.
type SubscriptionRequest struct {
	ProductCode string
	Locations   []string
	Preferences Preferences
	DisplayName string
	LastStatus  map[string]string
	History     []HistoryEntry
}

type Registry struct {
	mu   sync.Mutex
	subs []*Subscription
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add creates a subscription or, when the product code is already
// registered, replaces its filters, preferences and display name while
// keeping LastStatus and History. It reports whether a new subscription was
// created.
func (r *Registry) Add(req SubscriptionRequest, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	locs := append([]string{}, req.Locations...)
	if s := r.find(req.ProductCode); s != nil {
		s.Locations = locs
		s.NotifyAvailable = req.Preferences.NotifyAvailable
		s.NotifyUnavailable = req.Preferences.NotifyUnavailable
		s.DisplayName = req.DisplayName
		if s.History == nil {
			s.History = []HistoryEntry{}
		}
		return false
	}

	sub := &Subscription{
		ProductCode:       req.ProductCode,
		Locations:         locs,
		NotifyAvailable:   req.Preferences.NotifyAvailable,
		NotifyUnavailable: req.Preferences.NotifyUnavailable,
		LastStatus:        map[string]string{},
		CreatedAt:         now,
		History:           []HistoryEntry{},
		DisplayName:       req.DisplayName,
	}
	if req.LastStatus != nil {
		for k, v := range req.LastStatus {
			sub.LastStatus[k] = v
		}
	}
	if req.History != nil {
		sub.History = append(sub.History, req.History...)
		if n := len(sub.History); n > MaxHistory {
			sub.History = sub.History[n-MaxHistory:]
		}
	}
	r.subs = append(r.subs, sub)
	return true
}

func (r *Registry) Remove(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s.ProductCode == code {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.subs)
	r.subs = nil
	return n
}

// List returns copies of all subscriptions in insertion order.
func (r *Registry) List() []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s.clone())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *Registry) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.subs))
	for i, s := range r.subs {
		out[i] = s.ProductCode
	}
	return out
}

// update runs fn on the live subscription under the registry lock. It
// reports false if the subscription was removed in the meantime.
func (r *Registry) update(code string, fn func(*Subscription)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.find(code)
	if s == nil {
		return false
	}
	fn(s)
	return true
}

func (r *Registry) find(code string) *Subscription {
	for _, s := range r.subs {
		if s.ProductCode == code {
			return s
		}
	}
	return nil
}
