package server

import (
	"sync/atomic"
)

// SyncMetrics 记录同步服务运行期的关键指标（用于监控与调试）
type SyncMetrics struct {
	ConnectionsOpened int64 // 建立的连接数
	ConnectionsClosed int64 // 断开的连接数
	CellsSet          int64 // 已应用的手动填写
	Reveals           int64 // 已应用的揭示
	UnknownIgnored    int64 // 未知 method 被忽略的更新数
	OutOfRangeDropped int64 // 因位置越界被丢弃的更新数
	MalformedDropped  int64 // 无法解析被丢弃的消息数
	PositionUpdates   int64 // 光标位置更新数
	RateLimited       int64 // 因限流被拒绝的消息数
	FramesBroadcast   int64 // 成功入队的下行帧数
	ChanFullDiscarded int64 // 因发送队列满被丢弃的下行帧数
}

func (m *SyncMetrics) IncOpened()            { atomic.AddInt64(&m.ConnectionsOpened, 1) }
func (m *SyncMetrics) IncClosed()            { atomic.AddInt64(&m.ConnectionsClosed, 1) }
func (m *SyncMetrics) IncCellsSet()          { atomic.AddInt64(&m.CellsSet, 1) }
func (m *SyncMetrics) IncReveals()           { atomic.AddInt64(&m.Reveals, 1) }
func (m *SyncMetrics) IncUnknownIgnored()    { atomic.AddInt64(&m.UnknownIgnored, 1) }
func (m *SyncMetrics) IncOutOfRange()        { atomic.AddInt64(&m.OutOfRangeDropped, 1) }
func (m *SyncMetrics) IncMalformed()         { atomic.AddInt64(&m.MalformedDropped, 1) }
func (m *SyncMetrics) IncPositionUpdates()   { atomic.AddInt64(&m.PositionUpdates, 1) }
func (m *SyncMetrics) IncRateLimited()       { atomic.AddInt64(&m.RateLimited, 1) }
func (m *SyncMetrics) IncFramesBroadcast()   { atomic.AddInt64(&m.FramesBroadcast, 1) }
func (m *SyncMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *SyncMetrics) Snapshot() map[string]any {
	return map[string]any{
		"connections_opened":  atomic.LoadInt64(&m.ConnectionsOpened),
		"connections_closed":  atomic.LoadInt64(&m.ConnectionsClosed),
		"cells_set":           atomic.LoadInt64(&m.CellsSet),
		"reveals":             atomic.LoadInt64(&m.Reveals),
		"unknown_ignored":     atomic.LoadInt64(&m.UnknownIgnored),
		"out_of_range":        atomic.LoadInt64(&m.OutOfRangeDropped),
		"malformed_dropped":   atomic.LoadInt64(&m.MalformedDropped),
		"position_updates":    atomic.LoadInt64(&m.PositionUpdates),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"frames_broadcast":    atomic.LoadInt64(&m.FramesBroadcast),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
	}
}
