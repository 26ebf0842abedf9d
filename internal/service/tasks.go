package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrRunnerClosed 종료 중인 runner 에 작업 제출
var ErrRunnerClosed = errors.New("task runner is shutting down")

// TaskRunner 요청 흐름과 분리된 백그라운드 작업 실행기.
// 실패와 패닉은 로그와 메트릭으로만 남는다.
type TaskRunner struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	inflight atomic.Int64
	failed   atomic.Int64
}

func NewTaskRunner(logger *zap.Logger, m *metrics.Metrics) *TaskRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{
		logger:  logger.Named("tasks"),
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit 작업 제출. 종료 중이면 ErrRunnerClosed.
func (r *TaskRunner) Submit(name string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("Task rejected", zap.String("task", name))
		return ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	r.inflight.Inc()
	go func() {
		defer r.wg.Done()
		defer r.inflight.Dec()

		err := r.run(name, fn)
		r.metrics.TaskDone(name, err)
		if err != nil {
			r.failed.Inc()
			r.logger.Error("Background task failed", zap.String("task", name), zap.Error(err))
		}
	}()

	return nil
}

func (r *TaskRunner) run(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", name, p)
		}
	}()
	return fn(r.ctx)
}

// Inflight 실행 중인 작업 수
func (r *TaskRunner) Inflight() int64 {
	return r.inflight.Load()
}

// Failed 누적 실패 수
func (r *TaskRunner) Failed() int64 {
	return r.failed.Load()
}

// Wait 제출된 작업이 모두 끝날 때까지 대기
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}

// Shutdown 새 작업을 거부하고 실행 중인 작업을 기다린다.
// ctx 가 먼저 끝나면 작업 컨텍스트를 취소한다.
func (r *TaskRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
