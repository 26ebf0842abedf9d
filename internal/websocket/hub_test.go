package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeClient 연결 없이 허브에 등록할 클라이언트
func fakeClient(h *Hub, userID string, buffer int) *Client {
	return &Client{
		hub:    h,
		send:   make(chan *Message, buffer),
		userID: userID,
		logger: h.logger,
	}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return h
}

func receive(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHub_SendToUser(t *testing.T) {
	h := runHub(t)
	alice := fakeClient(h, "alice", 4)
	bob := fakeClient(h, "bob", 4)
	h.register <- alice
	h.register <- bob

	require.True(t, h.SendToUser("alice", TypeMatchInvitation, map[string]string{"matchId": "m1"}))

	msg := receive(t, alice)
	assert.Equal(t, TypeMatchInvitation, msg.Type)
	assert.Equal(t, map[string]string{"matchId": "m1"}, msg.Payload)

	select {
	case <-bob.send:
		t.Fatal("message delivered to the wrong user")
	case <-time.After(20 * time.Millisecond):
	}

	// 오프라인 사용자에게 보낸 메시지는 큐에 들어가지만 버려진다
	assert.True(t, h.SendToUser("carol", TypeMatchInvitation, nil))
}

func TestHub_Broadcast(t *testing.T) {
	h := runHub(t)
	clients := []*Client{fakeClient(h, "a", 1), fakeClient(h, "b", 1)}
	for _, c := range clients {
		h.register <- c
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.True(t, h.Broadcast(TypeMatchStateChanged, "m1"))
	for _, c := range clients {
		assert.Equal(t, TypeMatchStateChanged, receive(t, c).Type)
	}
}

func TestHub_ReplacesExistingConnection(t *testing.T) {
	h := runHub(t)
	first := fakeClient(h, "alice", 1)
	second := fakeClient(h, "alice", 1)

	h.register <- first
	h.register <- second

	_, ok := <-first.send
	assert.False(t, ok, "replaced client must be closed")

	// 교체된 연결의 해제 요청은 새 연결에 영향이 없다
	h.unregister <- first
	assert.Eventually(t, func() bool { return h.Online("alice") }, time.Second, 5*time.Millisecond)

	h.SendToUser("alice", TypeMatchInvitation, nil)
	assert.Equal(t, TypeMatchInvitation, receive(t, second).Type)
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	h := runHub(t)
	c := fakeClient(h, "alice", 1)
	h.register <- c
	h.unregister <- c

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, h.Online("alice"))
	assert.Zero(t, h.ClientCount())
}

func TestHub_DropsWhenClientBufferFull(t *testing.T) {
	h := runHub(t)
	c := fakeClient(h, "alice", 1)
	h.register <- c

	h.SendToUser("alice", TypeMatchInvitation, 1)
	h.SendToUser("alice", TypeMatchInvitation, 2)
	h.SendToUser("alice", TypeMatchInvitation, 3)

	// 큐가 비고 허브 루프가 다음 요청을 받으면 전달이 끝난 것이다
	assert.Eventually(t, func() bool { return len(h.outbound) == 0 }, time.Second, time.Millisecond)
	h.unregister <- fakeClient(h, "nobody", 0)

	require.Len(t, c.send, 1)
	assert.Equal(t, 1, receive(t, c).Payload)
}

func TestHub_PushFailsWhenQueueFull(t *testing.T) {
	// Run 없이 큐만 채운다
	h := NewHub(zaptest.NewLogger(t))
	for i := 0; i < cap(h.outbound); i++ {
		require.True(t, h.Broadcast(TypeMatchStateChanged, i))
	}
	assert.False(t, h.SendToUser("alice", TypeMatchInvitation, nil))
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := fakeClient(h, "alice", 1)
	h.register <- c
	cancel()
	<-stopped

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Zero(t, h.ClientCount())

	select {
	case <-h.done:
	default:
		t.Fatal("done channel not closed")
	}
}
