package distributed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStateChangeRelay_DeliversToOtherInstances(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	logger := zaptest.NewLogger(t)
	sender := NewStateChangeRelay(client, logger)
	receiver := NewStateChangeRelay(client, logger)
	assert.NotEqual(t, sender.InstanceID(), receiver.InstanceID())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	received := make(chan StateChange, 64)
	echoed := make(chan StateChange, 64)
	listening := make(chan struct{}, 2)

	listen := func(r *StateChangeRelay, out chan StateChange) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listening <- struct{}{}
			_ = r.Listen(ctx, func(change StateChange) { out <- change })
		}()
	}
	listen(receiver, received)
	listen(sender, echoed)
	<-listening
	<-listening

	// 구독이 완료될 때까지 재발행
	require.Eventually(t, func() bool {
		if err := sender.Publish(ctx, StateChange{MatchID: "m1", From: "formed", To: "confirmed"}); err != nil {
			return false
		}
		select {
		case change := <-received:
			assert.Equal(t, "m1", change.MatchID)
			assert.Equal(t, sender.InstanceID(), change.InstanceID)
			assert.False(t, change.OccurredAt.IsZero())
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	// 자기 자신이 발행한 변경은 받지 않는다
	select {
	case change := <-echoed:
		t.Fatalf("sender received its own change: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStateChangeRelay_ListenStopsWithContext(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	relay := NewStateChangeRelay(client, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- relay.Listen(ctx, func(StateChange) {}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}
