package distributed

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Renewable 만료 시간이 있어 작업 중 연장해야 하는 락
type Renewable interface {
	Lock
	TTL() time.Duration
	Extend(ctx context.Context, extension time.Duration) error
}

// KeepAlive 락이 Renewable 이면 TTL 의 1/3 마다 같은 TTL 로 연장한다.
// 반환 함수는 연장을 멈추고 갱신 고루틴이 끝날 때까지 기다린다.
// 연장 실패는 onError 로 전달하고, 락을 잃었으면 더 연장하지 않는다.
func KeepAlive(lock Lock, onError func(error)) (stop func()) {
	r, ok := lock.(Renewable)
	if !ok {
		return func() {}
	}
	ttl := r.TTL()
	interval := ttl / 3
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := r.Extend(ctx, ttl)
				if err == nil || ctx.Err() != nil {
					continue
				}
				if onError != nil {
					onError(err)
				}
				if errors.Is(err, ErrLockNotHeld) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
