package server

import (
	"errors"
	"fmt"

	"xwordsync/store"
)

// ProtocolHandler 处理客户端上行消息：先写共享存储，再向其他连接转发
type ProtocolHandler struct {
	store    *store.Store
	presence *PresenceTracker
	out      Broadcaster
	metrics  *SyncMetrics
}

// NewProtocolHandlerOptions 构造参数
type NewProtocolHandlerOptions struct {
	Store       *store.Store
	Presence    *PresenceTracker
	Broadcaster Broadcaster
	Metrics     *SyncMetrics
}

func NewProtocolHandler(opts NewProtocolHandlerOptions) *ProtocolHandler {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &SyncMetrics{}
	}
	presence := opts.Presence
	if presence == nil {
		presence = NewPresenceTracker(opts.Store)
	}
	return &ProtocolHandler{
		store:    opts.Store,
		presence: presence,
		out:      opts.Broadcaster,
		metrics:  metrics,
	}
}

// Dispatch 解析一帧并按 event 分发；未知事件直接忽略
func (h *ProtocolHandler) Dispatch(id string, frame []byte) error {
	env, err := ParseEnvelope(frame)
	if err != nil {
		h.metrics.IncMalformed()
		return err
	}
	switch env.Event {
	case EventClientGridUpdate:
		return h.OnGridUpdate(id, env.Data)
	case EventClientPositionUpdate:
		return h.OnPositionUpdate(id, env.Data)
	default:
		Log.Debugw("ignoring unknown event", "conn", id, "event", env.Event)
		return nil
	}
}

// OnGridUpdate 应用网格更新并将原始载荷原样转发给除发送者外的所有连接。
// 载荷无法解析或位置越界时丢弃，不转发。
func (h *ProtocolHandler) OnGridUpdate(id string, payload []byte) error {
	update, err := ParseGridUpdate(payload)
	if err != nil {
		h.metrics.IncMalformed()
		return err
	}

	switch u := update.(type) {
	case ManualEntry:
		if err := h.store.SetCell(u.Position, u.Value); err != nil {
			if errors.Is(err, store.ErrOutOfRange) {
				h.metrics.IncOutOfRange()
			}
			return fmt.Errorf("set cell: %w", err)
		}
		h.metrics.IncCellsSet()
	case Reveal:
		if err := h.store.MarkRevealed(u.Position); err != nil {
			return fmt.Errorf("mark revealed: %w", err)
		}
		h.metrics.IncReveals()
	case UnknownUpdate:
		h.metrics.IncUnknownIgnored()
		Log.Debugw("ignoring grid update", "conn", id, "method", u.Method)
	}

	frame, err := encodeFrame(EventServerGridUpdate, payload)
	if err != nil {
		return fmt.Errorf("encode grid update: %w", err)
	}
	h.out.Broadcast(frame, id)
	return nil
}

// OnPositionUpdate 更新连接光标，并把全量快照广播给所有连接（包括发送者）
func (h *ProtocolHandler) OnPositionUpdate(id string, payload []byte) error {
	position, err := ParsePositionUpdate(payload)
	if err != nil {
		h.metrics.IncMalformed()
		return err
	}
	h.metrics.IncPositionUpdates()

	var encErr error
	h.presence.Update(id, position, func(snap PresenceSnapshot) {
		frame, err := encodeTextFrame(EventServerPositionUpdate, snap)
		if err != nil {
			encErr = err
			return
		}
		h.out.Broadcast(frame, "")
	})
	if encErr != nil {
		return fmt.Errorf("encode presence: %w", encErr)
	}
	return nil
}
