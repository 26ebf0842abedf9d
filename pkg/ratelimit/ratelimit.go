// Package ratelimit 키 (사용자, IP) 단위 요청 제한.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision 한 요청에 대한 판정
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter 윈도우당 limit 개의 요청을 허용한다
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// TokenBucket 토큰 버킷. 토큰은 경과 시간에 비례해 연속적으로 채워진다.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	perSecond  float64
	lastRefill time.Time
	lastUsed   time.Time
}

func newTokenBucket(capacity int, window time.Duration, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		perSecond:  float64(capacity) / window.Seconds(),
		lastRefill: now,
		lastUsed:   now,
	}
}

func (b *TokenBucket) take(now time.Time) (bool, int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.perSecond
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}
	b.lastUsed = now

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}

	// 다음 토큰 하나가 채워지는 시각
	missing := 1 - b.tokens
	if missing < 0 {
		missing = 0
	}
	reset := now.Add(time.Duration(missing / b.perSecond * float64(time.Second)))
	return allowed, int(b.tokens), reset
}

// LocalLimiter 단일 인스턴스용 메모리 제한기
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*TokenBucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = newTokenBucket(l.limit, l.window, now)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	allowed, remaining, reset := bucket.take(now)
	return Decision{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   reset,
	}, nil
}

// Prune idle 동안 쓰이지 않은 버킷 삭제. 삭제한 수를 반환한다.
func (l *LocalLimiter) Prune(idle time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, bucket := range l.buckets {
		bucket.mu.Lock()
		stale := now.Sub(bucket.lastUsed) > idle
		bucket.mu.Unlock()
		if stale {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Reset 키의 제한 초기화
func (l *LocalLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
