package service

import (
	"context"
	"sync"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Timer 주기 작업 하나. 이전 실행이 끝나지 않았으면 이번 실행은 건너뛴다.
type Timer struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
	lastRun atomic.Time
	lastErr atomic.String
}

// TimerStatus 관리 화면용 타이머 상태
type TimerStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Started   bool       `json:"started"`
	Running   bool       `json:"running"`
	Runs      int64      `json:"runs"`
	Skipped   int64      `json:"skipped"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

func NewTimer(name string, interval time.Duration, run func(ctx context.Context) error, logger *zap.Logger, m *metrics.Metrics) *Timer {
	return &Timer{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger.With(zap.String("timer", name)),
		metrics:  m,
	}
}

func (t *Timer) Name() string { return t.name }

// Start 타이머 시작. 이미 시작되었으면 false.
func (t *Timer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return false
	}
	t.started = true
	t.stopChan = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.logger.Info("Starting timer", zap.Duration("interval", t.interval))

	t.wg.Add(1)
	go t.loop(ctx, t.stopChan)
	return true
}

// Stop 타이머 중지. 진행 중인 실행은 취소 후 끝날 때까지 기다린다.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return false
	}
	t.started = false
	close(t.stopChan)
	t.cancel()
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("Timer stopped")
	return true
}

func (t *Timer) loop(ctx context.Context, stop <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.RunOnce(ctx)
		case <-stop:
			return
		}
	}
}

// RunOnce 즉시 실행. 이미 실행 중이면 건너뛰고 false.
func (t *Timer) RunOnce(ctx context.Context) (bool, error) {
	if !t.running.CompareAndSwap(false, true) {
		t.skipped.Inc()
		t.metrics.TimerSkip(t.name)
		t.logger.Warn("Previous run still active, skipping")
		return false, nil
	}
	defer t.running.Store(false)

	start := time.Now()
	err := t.run(ctx)
	elapsed := time.Since(start)

	t.runs.Inc()
	t.lastRun.Store(start)
	t.metrics.TimerRun(t.name, elapsed)

	if err != nil {
		t.lastErr.Store(err.Error())
		t.logger.Error("Timer run failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return true, err
	}

	t.lastErr.Store("")
	t.logger.Debug("Timer run completed", zap.Duration("elapsed", elapsed))
	return true, nil
}

func (t *Timer) Status() TimerStatus {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()

	status := TimerStatus{
		Name:      t.name,
		Interval:  t.interval.String(),
		Started:   started,
		Running:   t.running.Load(),
		Runs:      t.runs.Load(),
		Skipped:   t.skipped.Load(),
		LastError: t.lastErr.Load(),
	}
	if last := t.lastRun.Load(); !last.IsZero() {
		status.LastRunAt = &last
	}
	return status
}
