package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/yourneighborhoodchef/servermon/internal/metrics"
)

// TokenJar paces outbound API requests. A background refiller adds tokens
// every refill interval until Stop is called.
type TokenJar struct {
	refillInterval  time.Duration
	tokensPerRefill int
	maxTokens       int
	tokens          int
	mu              sync.Mutex
	tokensAvailable chan struct{}
	done            chan struct{}
	stopOnce        sync.Once
}

func NewTokenJar(targetRPS float64, burstLimit int) *TokenJar {
	if targetRPS <= 0 {
		targetRPS = 1
	}
	refillInterval := time.Duration(float64(time.Second) / targetRPS)
	if refillInterval < 10*time.Millisecond {
		refillInterval = 10 * time.Millisecond
	}

	tokensPerRefill := 1
	if targetRPS > 10 {
		tokensPerRefill = int(targetRPS / 5)
		refillInterval = time.Duration(float64(tokensPerRefill) * float64(time.Second) / targetRPS)
	}

	if burstLimit <= 0 {
		burstLimit = int(targetRPS * 2)
	}
	if burstLimit < tokensPerRefill {
		burstLimit = tokensPerRefill
	}

	jar := &TokenJar{
		refillInterval:  refillInterval,
		tokensPerRefill: tokensPerRefill,
		maxTokens:       burstLimit,
		tokens:          burstLimit,
		tokensAvailable: make(chan struct{}, 1),
		done:            make(chan struct{}),
	}

	go jar.refiller()

	return jar
}

func (tj *TokenJar) refiller() {
	ticker := time.NewTicker(tj.refillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tj.mu.Lock()
			prevTokens := tj.tokens
			tj.tokens += tj.tokensPerRefill
			if tj.tokens > tj.maxTokens {
				tj.tokens = tj.maxTokens
			}

			if prevTokens == 0 && tj.tokens > 0 {
				select {
				case tj.tokensAvailable <- struct{}{}:
				default:
				}
			}
			tj.mu.Unlock()

		case <-tj.done:
			return
		}
	}
}

func (tj *TokenJar) take() bool {
	tj.mu.Lock()
	defer tj.mu.Unlock()
	if tj.tokens > 0 {
		tj.tokens--
		return true
	}
	return false
}

func (tj *TokenJar) Tokens() int {
	tj.mu.Lock()
	defer tj.mu.Unlock()
	return tj.tokens
}

// Wait blocks until a token is available or ctx is done.
func (tj *TokenJar) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.RateLimitWait.Observe(time.Since(start).Seconds()) }()

	if tj.take() {
		return nil
	}

	timer := time.NewTimer(tj.refillInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tj.done:
			return context.Canceled
		case <-tj.tokensAvailable:
		case <-timer.C:
			timer.Reset(tj.refillInterval)
		}
		if tj.take() {
			return nil
		}
	}
}

func (tj *TokenJar) Stop() {
	tj.stopOnce.Do(func() { close(tj.done) })
}
