package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourneighborhoodchef/servermon/internal/monitor"
)

const DefaultKey = "servermon:state"

type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// StateStore keeps the monitor state as a single JSON document in Redis.
type StateStore struct {
	rdb *redis.Client
	key string
}

func New(ctx context.Context, opts Options) (*StateStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewWithRedis(rdb, opts.Key), nil
}

func NewWithRedis(rdb *redis.Client, key string) *StateStore {
	if key == "" {
		key = DefaultKey
	}
	return &StateStore{rdb: rdb, key: key}
}

func (s *StateStore) Save(ctx context.Context, st monitor.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Load returns nil, nil when nothing was saved yet.
func (s *StateStore) Load(ctx context.Context) (*monitor.Status, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	var st monitor.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

func (s *StateStore) Close() error {
	return s.rdb.Close()
}

// Restore re-adds saved subscriptions with their last status and history
// and applies the saved check interval. It returns how many subscriptions
// were restored.
func Restore(m *monitor.Monitor, st *monitor.Status) int {
	if st == nil {
		return 0
	}
	if st.CheckInterval >= monitor.MinCheckInterval {
		m.SetCheckInterval(st.CheckInterval)
	}
	n := 0
	for _, sub := range st.Subscriptions {
		if sub.ProductCode == "" {
			continue
		}
		m.AddSubscription(monitor.SubscriptionRequest{
			ProductCode: sub.ProductCode,
			Locations:   sub.Locations,
			Preferences: monitor.Preferences{
				NotifyAvailable:   sub.NotifyAvailable,
				NotifyUnavailable: sub.NotifyUnavailable,
			},
			DisplayName: sub.DisplayName,
			LastStatus:  sub.LastStatus,
			History:     sub.History,
		})
		n++
	}
	return n
}
