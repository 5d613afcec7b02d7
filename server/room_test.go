package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(c *ClientConn) [][]byte {
	var out [][]byte
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestRoomBroadcast(t *testing.T) {
	metrics := &SyncMetrics{}
	room := NewRoom(metrics)
	a, b, c := NewClientConn(nil, 4), NewClientConn(nil, 4), NewClientConn(nil, 4)
	room.Register("a", a)
	room.Register("b", b)
	room.Register("c", c)
	assert.Equal(t, 3, room.Count())

	room.Broadcast([]byte("x"), "b")
	room.Broadcast([]byte("y"), "")
	room.SendTo("c", []byte("z"))
	room.SendTo("missing", []byte("lost"))

	assert.Equal(t, [][]byte{[]byte("x"), []byte("y")}, drain(a))
	assert.Equal(t, [][]byte{[]byte("y")}, drain(b))
	assert.Equal(t, [][]byte{[]byte("x"), []byte("y"), []byte("z")}, drain(c))
	assert.Equal(t, int64(6), metrics.FramesBroadcast)
}

func TestRoomDropsWhenQueueFull(t *testing.T) {
	metrics := &SyncMetrics{}
	room := NewRoom(metrics)
	slow := NewClientConn(nil, 1)
	room.Register("slow", slow)

	room.Broadcast([]byte("1"), "")
	room.Broadcast([]byte("2"), "")

	assert.Equal(t, [][]byte{[]byte("1")}, drain(slow))
	assert.Equal(t, int64(1), metrics.FramesBroadcast)
	assert.Equal(t, int64(1), metrics.ChanFullDiscarded)
}

func TestRoomUnregisterClosesQueue(t *testing.T) {
	room := NewRoom(nil)
	conn := NewClientConn(nil, 2)
	room.Register("a", conn)

	room.Unregister("a")
	room.Unregister("a")

	assert.Equal(t, 0, room.Count())
	assert.False(t, conn.Enqueue([]byte("late")))
	_, ok := <-conn.send
	assert.False(t, ok, "send queue is closed")
}
