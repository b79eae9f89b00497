package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yourneighborhoodchef/servermon/internal/monitor"
)

func newTestStore(t *testing.T) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewWithRedis(rdb, "")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStateStore_LoadEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	st, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil state, got %+v", st)
	}
}

func TestStateStore_RoundTrip(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := monitor.Status{
		CheckInterval:      120,
		SubscriptionsCount: 1,
		Subscriptions: []monitor.Subscription{{
			ProductCode:     "24ska01",
			Locations:       []string{"rbx"},
			NotifyAvailable: true,
			LastStatus:      map[string]string{"rbx|X.32GB.512GB": "available"},
			CreatedAt:       at,
			History: []monitor.HistoryEntry{{
				ID:         "h1",
				Timestamp:  at,
				Location:   "rbx",
				Status:     "available",
				ChangeType: monitor.ChangeAvailable,
				Config:     &monitor.Config{Memory: "32GB", Storage: "512GB"},
			}},
		}},
	}

	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !mr.Exists(DefaultKey) {
		t.Fatalf("expected key %q to exist", DefaultKey)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.CheckInterval != 120 || len(got.Subscriptions) != 1 {
		t.Fatalf("unexpected state %+v", got)
	}
	sub := got.Subscriptions[0]
	if sub.LastStatus["rbx|X.32GB.512GB"] != "available" {
		t.Errorf("last status mismatch: %v", sub.LastStatus)
	}
	if len(sub.History) != 1 || sub.History[0].Config == nil || sub.History[0].Config.Memory != "32GB" {
		t.Errorf("history mismatch: %+v", sub.History)
	}
	if !sub.CreatedAt.Equal(at) {
		t.Errorf("created at mismatch: %v", sub.CreatedAt)
	}
}

func TestStateStore_LoadCorrupt(t *testing.T) {
	s, mr := newTestStore(t)
	if err := mr.Set(DefaultKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRestore(t *testing.T) {
	src := monitor.SourceFunc(func(context.Context, string) (monitor.Snapshot, error) { return nil, nil })
	sink := monitor.SinkFunc(func(context.Context, string) error { return nil })
	m := monitor.New(src, sink, slog.New(slog.NewTextHandler(io.Discard, nil)), monitor.Options{})

	n := Restore(m, &monitor.Status{
		CheckInterval: 300,
		Subscriptions: []monitor.Subscription{
			{ProductCode: "24sk10", LastStatus: map[string]string{"fsn1": "available"}},
			{ProductCode: ""},
		},
	})
	if n != 1 {
		t.Fatalf("expected 1 restored subscription, got %d", n)
	}
	if m.CheckInterval() != 300 {
		t.Errorf("expected interval 300, got %d", m.CheckInterval())
	}
	subs := m.Subscriptions()
	if len(subs) != 1 || subs[0].LastStatus["fsn1"] != "available" {
		t.Errorf("unexpected subscriptions %+v", subs)
	}
	if Restore(m, nil) != 0 {
		t.Error("expected nil state to restore nothing")
	}
}
