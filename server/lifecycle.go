package server

import (
	"fmt"

	"github.com/google/uuid"
)

// Lifecycle 连接建立/断开：分配与回收标识，维护在线表
type Lifecycle struct {
	presence *PresenceTracker
	out      Broadcaster
	metrics  *SyncMetrics
	newID    func() string
}

// NewLifecycleOptions 构造参数；NewID 为空时使用 UUID
type NewLifecycleOptions struct {
	Presence    *PresenceTracker
	Broadcaster Broadcaster
	Metrics     *SyncMetrics
	NewID       func() string
}

func NewLifecycle(opts NewLifecycleOptions) *Lifecycle {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &SyncMetrics{}
	}
	return &Lifecycle{
		presence: opts.Presence,
		out:      opts.Broadcaster,
		metrics:  metrics,
		newID:    newID,
	}
}

// NextID 生成新连接标识
func (l *Lifecycle) NextID() string {
	return l.newID()
}

// OnConnect 以位置 0 登记连接，并把标识单播回该连接
func (l *Lifecycle) OnConnect(id string) error {
	return l.Accept(id, func(frame []byte) { l.out.SendTo(id, frame) })
}

// Accept 生成标识帧并交给 attach，随后以位置 0 登记连接。
// attach 负责把帧放进该连接的发送队列并使其可被广播，标识帧因此总是第一帧。
func (l *Lifecycle) Accept(id string, attach func(assign []byte)) error {
	frame, err := encodeStringFrame(EventServerAssignID, id)
	if err != nil {
		return fmt.Errorf("encode assign id: %w", err)
	}
	l.metrics.IncOpened()
	attach(frame)
	l.presence.Join(id)
	Log.Infow("connection opened", "conn", id)
	return nil
}

// OnDisconnect 删除在线记录，并向剩余连接广播仅含位置的快照
func (l *Lifecycle) OnDisconnect(id string) error {
	l.metrics.IncClosed()

	var encErr error
	l.presence.Remove(id, func(snap PositionsSnapshot) {
		frame, err := encodeTextFrame(EventServerPositionUpdate, snap)
		if err != nil {
			encErr = err
			return
		}
		l.out.Broadcast(frame, id)
	})
	Log.Infow("connection closed", "conn", id)
	if encErr != nil {
		return fmt.Errorf("encode presence: %w", encErr)
	}
	return nil
}
