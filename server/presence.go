package server

import (
	"sync"

	"xwordsync/store"
)

// PresenceTracker 基于存储在线表生成光标快照
type PresenceTracker struct {
	// 串行化“更新 + 快照 + 广播”，保证广播顺序与快照顺序一致
	mu    sync.Mutex
	store *store.Store
}

func NewPresenceTracker(s *store.Store) *PresenceTracker {
	return &PresenceTracker{store: s}
}

// SnapshotAll 全部在线连接的标识与位置（并行数组，按加入顺序）
func (p *PresenceTracker) SnapshotAll() PresenceSnapshot {
	entries := p.store.ListPresence()
	snap := PresenceSnapshot{
		IDs:       make([]string, 0, len(entries)),
		Positions: make([]int, 0, len(entries)),
	}
	for _, e := range entries {
		snap.IDs = append(snap.IDs, e.ID)
		snap.Positions = append(snap.Positions, e.Position)
	}
	return snap
}

// Positions 仅位置的快照
func (p *PresenceTracker) Positions() PositionsSnapshot {
	entries := p.store.ListPresence()
	snap := PositionsSnapshot{Positions: make([]int, 0, len(entries))}
	for _, e := range entries {
		snap.Positions = append(snap.Positions, e.Position)
	}
	return snap
}

// Update 写入连接的新位置，并在同一临界区内调用 emit 发出全量快照
func (p *PresenceTracker) Update(id string, position int, emit func(PresenceSnapshot)) PresenceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store.SetPresence(id, position)
	snap := p.SnapshotAll()
	if emit != nil {
		emit(snap)
	}
	return snap
}

// Remove 删除连接记录，并在同一临界区内调用 emit 发出剩余位置
func (p *PresenceTracker) Remove(id string, emit func(PositionsSnapshot)) PositionsSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store.RemovePresence(id)
	snap := p.Positions()
	if emit != nil {
		emit(snap)
	}
	return snap
}

// Join 以默认位置登记新连接（不广播）
func (p *PresenceTracker) Join(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store.SetPresence(id, store.DefaultPosition)
}

// Restore 以默认位置重新登记 ids 中仍然在线的连接（谜题重载后使用）。
// alive 在同一临界区内判断，与 Remove 串行，已断开的连接不会被加回。
func (p *PresenceTracker) Restore(ids []string, alive func(id string) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if alive(id) {
			p.store.SetPresence(id, store.DefaultPosition)
		}
	}
}
