package server

import (
	"sort"
	"sync"
)

// Broadcaster 下行广播能力：尽力投递，不确认、不重试
type Broadcaster interface {
	// SendTo 只发给指定连接
	SendTo(id string, frame []byte)
	// Broadcast 发给所有连接；except 非空时排除该连接
	Broadcast(frame []byte, except string)
}

// Room 在线连接表；同一谜题的所有连接共享一个房间
type Room struct {
	mu      sync.RWMutex
	conns   map[string]*ClientConn
	metrics *SyncMetrics
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(metrics *SyncMetrics) *Room {
	if metrics == nil {
		metrics = &SyncMetrics{}
	}
	return &Room{
		conns:   make(map[string]*ClientConn),
		metrics: metrics,
	}
}

// Register 将连接加入房间
func (r *Room) Register(id string, conn *ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = conn
}

// Unregister 将连接移出房间并关闭其发送队列
func (r *Room) Unregister(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Count 当前连接数
func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Has 连接是否仍在房间中
func (r *Room) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// IDs 当前所有连接标识（排序后返回）
func (r *Room) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// SendTo 单播
func (r *Room) SendTo(id string, frame []byte) {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if ok {
		r.enqueue(c, frame)
	}
}

// Broadcast 将同一帧压入每个连接的发送队列（非阻塞）
func (r *Room) Broadcast(frame []byte, except string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.conns {
		if id == except {
			continue
		}
		r.enqueue(c, frame)
	}
}

func (r *Room) enqueue(c *ClientConn, frame []byte) {
	if c.Enqueue(frame) {
		r.metrics.IncFramesBroadcast()
	} else {
		r.metrics.IncChanFullDiscarded()
	}
}
