package distributed

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// Lock 획득한 락
type Lock interface {
	Release(ctx context.Context) error
}

// Locker 키 단위 배타 락. 대기 시간 안에 얻지 못하면 ErrLockNotAcquired.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

// LockOptions 락 획득 정책
type LockOptions struct {
	TTL           time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultLockOptions 기본 락 정책
func DefaultLockOptions() LockOptions {
	return LockOptions{
		TTL:           10 * time.Second,
		MaxRetries:    20,
		RetryInterval: 100 * time.Millisecond,
	}
}

// wait 재시도 전체 대기 한도
func (o LockOptions) wait() time.Duration {
	return time.Duration(o.MaxRetries) * o.RetryInterval
}

// LocalLockManager 단일 인스턴스용 프로세스 내 락
type LocalLockManager struct {
	mu    sync.Mutex
	locks map[string]*localEntry
	opts  LockOptions
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// NewLocalLockManager 프로세스 내 락 관리자 생성
func NewLocalLockManager(opts LockOptions) *LocalLockManager {
	return &LocalLockManager{
		locks: make(map[string]*localEntry),
		opts:  opts,
	}
}

// Obtain 키의 락을 얻을 때까지 대기 (최대 MaxRetries*RetryInterval)
func (m *LocalLockManager) Obtain(ctx context.Context, key string) (Lock, error) {
	entry := m.ref(key)

	timer := time.NewTimer(m.opts.wait())
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		return &localLock{manager: m, key: key, entry: entry}, nil
	case <-timer.C:
		m.unref(key)
		return nil, ErrLockNotAcquired
	case <-ctx.Done():
		m.unref(key)
		return nil, ctx.Err()
	}
}

func (m *LocalLockManager) ref(key string) *localEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (m *LocalLockManager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(m.locks, key)
	}
}

type localLock struct {
	manager *LocalLockManager
	key     string
	entry   *localEntry
	once    sync.Once
}

func (l *localLock) Release(_ context.Context) error {
	released := false
	l.once.Do(func() {
		<-l.entry.ch
		l.manager.unref(l.key)
		released = true
	})
	if !released {
		return ErrLockNotHeld
	}
	return nil
}
