package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"xwordsync/puzzle"
	"xwordsync/store"
)

// peerBroadcaster 模拟已连接的客户端：每个连接一个收件箱
type peerBroadcaster struct {
	mu     sync.Mutex
	peers  []string
	inbox  map[string][][]byte
	frames int
}

func newPeerBroadcaster(peers ...string) *peerBroadcaster {
	return &peerBroadcaster{peers: peers, inbox: make(map[string][][]byte)}
}

func (b *peerBroadcaster) connect(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.peers = append(b.peers, id)
}

func (b *peerBroadcaster) disconnect(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.peers {
		if p == id {
			b.peers = append(b.peers[:i], b.peers[i+1:]...)
			return
		}
	}
}

func (b *peerBroadcaster) SendTo(id string, frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.peers {
		if p == id {
			b.inbox[id] = append(b.inbox[id], frame)
			b.frames++
		}
	}
}

func (b *peerBroadcaster) Broadcast(frame []byte, except string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.peers {
		if p == except {
			continue
		}
		b.inbox[p] = append(b.inbox[p], frame)
		b.frames++
	}
}

func (b *peerBroadcaster) received(id string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.inbox[id]...)
}

func (b *peerBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbox = make(map[string][][]byte)
	b.frames = 0
}

// sequentialIDs 生成 id1, id2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func miniDefinition() *puzzle.Definition {
	return &puzzle.Definition{
		Size:     puzzle.Size{Rows: 2, Cols: 2},
		Grid:     []string{"A", "B", "C", "D"},
		GridNums: []int{1, 2, 3, 0},
		Clues:    puzzle.Clues{Across: []string{"1. ab", "3. cd"}, Down: []string{"1. ac", "2. bd"}},
		Title:    "mini",
	}
}

func loadedStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New()
	require.NoError(t, st.LoadFromSource(miniDefinition()))
	return st
}

func decodeFrame(t *testing.T, frame []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

// decodeText 解出 data 中以字符串形式携带的 JSON 文本
func decodeText(t *testing.T, data json.RawMessage, v any) {
	t.Helper()
	var text string
	require.NoError(t, json.Unmarshal(data, &text))
	require.NoError(t, json.Unmarshal([]byte(text), v))
}

func gridFrame(t *testing.T, payload string) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := encodeFrame(EventClientGridUpdate, data)
	require.NoError(t, err)
	return frame
}

func positionFrame(t *testing.T, position int) []byte {
	t.Helper()
	frame, err := encodeTextFrame(EventClientPositionUpdate, map[string]int{"position": position})
	require.NoError(t, err)
	return frame
}
