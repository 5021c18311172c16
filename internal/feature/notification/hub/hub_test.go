package hub

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub(queue int) *Hub {
	h := New(queue)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC) }
	return h
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case b, ok := <-c.Send():
		require.True(t, ok, "queue closed")
		var m Message
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	default:
		t.Fatal("no frame queued")
	}
	return Message{}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.Send():
		t.Fatalf("unexpected frame %s", b)
	default:
	}
}

func TestNew_DefaultQueue(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultQueueSize, New(0).queueSize)
	assert.Equal(t, 3, New(3).queueSize)
}

func TestHub_SendToUser(t *testing.T) {
	t.Parallel()
	h := newHub(4)
	a1 := h.Register(1, "t1")
	a2 := h.Register(1, "t1")
	b := h.Register(2, "t1")
	assert.NotEqual(t, a1.ID, a2.ID)

	n := h.SendToUser(1, "task.created", map[string]any{"id": 7})
	assert.Equal(t, 2, n)

	for _, c := range []*Client{a1, a2} {
		m := recv(t, c)
		assert.Equal(t, "task.created", m.Event)
		assert.Equal(t, "2026-03-01T12:00:00Z", m.Timestamp)
		assert.Equal(t, map[string]any{"id": float64(7)}, m.Data)
		assert.Empty(t, m.Room)
	}
	assertEmpty(t, b)

	assert.Zero(t, h.SendToUser(99, "x", nil))
}

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()
	h := newHub(4)
	cs := []*Client{h.Register(1, "t1"), h.Register(2, "t2"), h.Register(2, "t2")}

	assert.Equal(t, 3, h.Broadcast("maintenance", "soon"))
	for _, c := range cs {
		assert.Equal(t, "soon", recv(t, c).Data)
	}
}

func TestHub_Rooms(t *testing.T) {
	t.Parallel()
	h := newHub(4)
	a := h.Register(1, "t1")
	b := h.Register(2, "t1")
	room := TenantRoom("t1", "board")
	assert.Equal(t, "t1/board", room)

	h.Join(a, room)
	h.Join(b, room)
	h.Join(b, room)
	assert.Equal(t, 2, h.SendToRoom(room, "moved", nil))
	assert.Equal(t, room, recv(t, a).Room)
	recv(t, b)

	h.Leave(a, room)
	assert.Equal(t, 1, h.SendToRoom(room, "moved", nil))
	assertEmpty(t, a)
	recv(t, b)

	h.Leave(b, room)
	assert.Zero(t, h.SendToRoom(room, "moved", nil))
	h.mu.RLock()
	_, ok := h.rooms[room]
	h.mu.RUnlock()
	assert.False(t, ok, "empty room is removed")
}

func TestHub_Unregister(t *testing.T) {
	t.Parallel()
	h := newHub(4)
	a := h.Register(1, "t1")
	b := h.Register(1, "t1")
	h.Join(a, "t1/r")

	assert.True(t, h.IsUserConnected(1))
	h.Unregister(a)
	h.Unregister(a)

	_, ok := <-a.Send()
	assert.False(t, ok, "queue closed")
	assert.True(t, h.IsUserConnected(1))
	assert.Zero(t, h.SendToRoom("t1/r", "x", nil))
	assert.False(t, h.SendTo(a, "x", nil))

	h.Join(a, "t1/r")
	assert.Zero(t, h.SendToRoom("t1/r", "x", nil), "closed client cannot join")

	h.Unregister(b)
	assert.False(t, h.IsUserConnected(1))
	assert.Empty(t, h.ConnectedUsers())
	assert.Zero(t, h.Connections())
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()
	h := newHub(1)
	slow := h.Register(1, "t1")
	fast := h.Register(2, "t1")

	assert.Equal(t, 2, h.Broadcast("a", nil))
	recv(t, fast)

	// slow still holds the first frame
	assert.Equal(t, 1, h.Broadcast("b", nil))
	assert.False(t, h.IsUserConnected(1))
	assert.True(t, h.IsUserConnected(2))
	assert.Equal(t, "b", recv(t, fast).Event)

	assert.Equal(t, "a", recv(t, slow).Event)
	_, ok := <-slow.Send()
	assert.False(t, ok, "dropped client queue is closed")
}

func TestHub_ConnectedUsers(t *testing.T) {
	t.Parallel()
	h := newHub(4)
	h.Register(5, "t")
	h.Register(2, "t")
	h.Register(5, "t")

	assert.Equal(t, []uint{2, 5}, h.ConnectedUsers())
	assert.Equal(t, 3, h.Connections())
	assert.True(t, h.IsUserConnected(5))
	assert.False(t, h.IsUserConnected(3))
}

func TestHub_SendTo(t *testing.T) {
	t.Parallel()
	h := newHub(4)
	a := h.Register(1, "t")
	b := h.Register(1, "t")

	assert.True(t, h.SendTo(a, "connected", map[string]string{"id": a.ID}))
	assert.Equal(t, "connected", recv(t, a).Event)
	assertEmpty(t, b)
}

func TestHub_Concurrent(t *testing.T) {
	t.Parallel()
	h := New(1024)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			c := h.Register(id, "t")
			h.Join(c, "t/all")
			h.SendToRoom("t/all", "ping", nil)
			h.Broadcast("ping", nil)
			h.Unregister(c)
		}(uint(i))
	}
	wg.Wait()
	assert.Zero(t, h.Connections())
	assert.Empty(t, h.ConnectedUsers())
}
