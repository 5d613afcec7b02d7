package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"xwordsync/puzzle"
	"xwordsync/store"
)

// HandleCrossword 返回当前谜题状态，供新客户端初始化
// GET /crossword
func (s *Server) HandleCrossword(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot()
	if err != nil {
		Log.Errorw("bootstrap requested before puzzle load", "err", err)
		http.Error(w, "puzzle not loaded", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		Log.Warnw("encode crossword failed", "err", err)
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"connections": s.room.Count(),
		"presence":    len(s.store.ListPresence()),
		"metrics":     s.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// HandleAdminReload 重新加载谜题，清空当前进度
// POST /admin/reload  可选 JSON 载荷 {"path":"Other.json"}，路径限定在启动谜题所在目录
func (s *Server) HandleAdminReload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	path, err := s.resolvePuzzlePath(body.Path)
	if err != nil {
		Log.Warnw("reload path rejected", "path", body.Path, "remote", r.RemoteAddr)
		http.Error(w, "path not allowed", http.StatusForbidden)
		return
	}

	if err := s.Reload(path); err != nil {
		var le *puzzle.LoadError
		if errors.As(err, &le) {
			Log.Warnw("reload rejected", "err", err)
			http.Error(w, "puzzle rejected", http.StatusUnprocessableEntity)
			return
		}
		Log.Errorw("reload failed", "err", err)
		http.Error(w, "reload failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

// HandleAdminBoard 以纯文本输出当前网格
// GET /admin/board
func (s *Server) HandleAdminBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.store.Board()
	if errors.Is(err, store.ErrNotInitialized) {
		http.Error(w, "puzzle not loaded", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, board)
}
