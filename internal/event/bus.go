package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"go.uber.org/zap"
)

// Event 매치 상태 변경 이벤트. Match 는 이미 저장된 새 상태를 담고 있다.
type Event struct {
	Match      *models.Match     `json:"match"`
	From       models.MatchState `json:"from"`
	To         models.MatchState `json:"to"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Observer 상태 변경 이벤트 구독자
type Observer interface {
	Name() string
	OnStateChange(ctx context.Context, e Event) error
}

// Result 구독자별 처리 결과
type Result struct {
	Observer string
	Err      error
	Duration time.Duration
}

// FailureRecorder 구독자 실패 집계 (metrics 패키지가 구현)
type FailureRecorder interface {
	ObserverFailed(observer string)
}

// Bus 모든 구독자에게 동시에 전달하고 전부 끝날 때까지 기다린다.
// 구독자 실패는 다른 구독자나 발행자에게 전파되지 않는다.
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *zap.Logger
	recorder  FailureRecorder
}

// NewBus 이벤트 버스 생성
func NewBus(logger *zap.Logger, recorder FailureRecorder) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger,
		recorder: recorder,
	}
}

// Subscribe 구독자 등록
func (b *Bus) Subscribe(observers ...Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, observers...)
}

// Observers 등록된 구독자 이름
func (b *Bus) Observers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.observers))
	for _, o := range b.observers {
		names = append(names, o.Name())
	}
	return names
}

// Publish 이벤트 발행 (settle-all)
func (b *Bus) Publish(ctx context.Context, e Event) []Result {
	b.mu.RLock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	results := make([]Result, len(observers))
	var wg sync.WaitGroup
	for i, o := range observers {
		wg.Add(1)
		go func(i int, o Observer) {
			defer wg.Done()
			start := time.Now()
			err := b.invoke(ctx, o, e)
			results[i] = Result{
				Observer: o.Name(),
				Err:      err,
				Duration: time.Since(start),
			}
		}(i, o)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err == nil {
			continue
		}
		b.logger.Error("Observer failed",
			zap.String("observer", r.Observer),
			zap.String("matchId", e.Match.ID),
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)),
			zap.Error(r.Err))
		if b.recorder != nil {
			b.recorder.ObserverFailed(r.Observer)
		}
	}

	return results
}

func (b *Bus) invoke(ctx context.Context, o Observer, e Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("observer %s panicked: %v", o.Name(), p)
		}
	}()

	// 구독자마다 사본을 받아서 서로의 변경이 보이지 않게 한다
	copied := e
	copied.Match = e.Match.Clone()
	return o.OnStateChange(ctx, copied)
}
