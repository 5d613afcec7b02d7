package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"xwordsync/puzzle"
	"xwordsync/store"
)

// Options 服务配置（由 main 从命令行参数填充）
type Options struct {
	PuzzlePath  string        // 默认谜题文件，/admin/reload 未指定路径时使用
	AllowOrigin string        // 逗号分隔；"*" 允许所有来源
	WebDir      string        // 静态资源目录，为空则不提供
	RateLimit   float64       // 每连接每秒允许的上行帧数，0 表示不限流
	RateBurst   int           // 限流突发容量
	SendQueue   int           // 每连接发送队列容量
	NewID       func() string // 连接标识生成器，为空时使用 UUID
	AdminReload bool          // 是否开放 POST /admin/reload
}

// ErrPathNotAllowed 重载路径不在启动谜题所在目录内
var ErrPathNotAllowed = errors.New("puzzle path outside puzzle directory")

// Server 组装共享存储、房间与各处理器
type Server struct {
	opts      Options
	store     *store.Store
	room      *Room
	presence  *PresenceTracker
	handler   *ProtocolHandler
	lifecycle *Lifecycle
	metrics   *SyncMetrics
	upgrade   *websocket.Upgrader
	puzzleDir string

	reloadMu sync.Mutex
}

// New 创建服务；st 应已通过 LoadFromSource 完成加载
func New(st *store.Store, opts Options) *Server {
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if opts.RateLimit > 0 && opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	metrics := &SyncMetrics{}
	room := NewRoom(metrics)
	presence := NewPresenceTracker(st)
	s := &Server{
		opts:     opts,
		store:    st,
		room:     room,
		presence: presence,
		metrics:  metrics,
		handler: NewProtocolHandler(NewProtocolHandlerOptions{
			Store:       st,
			Presence:    presence,
			Broadcaster: room,
			Metrics:     metrics,
		}),
		lifecycle: NewLifecycle(NewLifecycleOptions{
			Presence:    presence,
			Broadcaster: room,
			Metrics:     metrics,
			NewID:       opts.NewID,
		}),
	}
	s.upgrade = s.upgrader()
	s.puzzleDir = filepath.Dir(opts.PuzzlePath)
	if abs, err := filepath.Abs(s.puzzleDir); err == nil {
		s.puzzleDir = abs
	}
	return s
}

// Room 返回连接表
func (s *Server) Room() *Room { return s.room }

// Metrics 返回指标
func (s *Server) Metrics() *SyncMetrics { return s.metrics }

// Reload 从文件重新加载谜题（清空状态与在线表），成功后通知所有连接重新拉取
func (s *Server) Reload(path string) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if path == "" {
		path = s.opts.PuzzlePath
	}
	def, err := puzzle.LoadFile(path)
	if err != nil {
		return err
	}
	prev := s.store.ListPresence()
	if err := s.store.LoadFromSource(def); err != nil {
		return err
	}
	s.presence.Restore(rejoinOrder(prev, s.room.IDs()), s.room.Has)
	s.opts.PuzzlePath = path
	Log.Infow("puzzle reloaded", "path", path, "title", def.Title, "rows", def.Size.Rows, "cols", def.Size.Cols)
	LogBoard(s.store)

	frame, err := encodeStringFrame(EventServerPuzzleReload, def.Title)
	if err != nil {
		return fmt.Errorf("encode reload: %w", err)
	}
	s.room.Broadcast(frame, "")
	return nil
}

// resolvePuzzlePath 将重载路径限定在启动谜题所在目录；相对路径相对该目录
func (s *Server) resolvePuzzlePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.puzzleDir, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(s.puzzleDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathNotAllowed
	}
	return path, nil
}

// rejoinOrder 先按原在线表顺序，再补上表中没有的连接
func rejoinOrder(prev []store.PresenceEntry, conns []string) []string {
	seen := make(map[string]bool, len(prev))
	ids := make([]string, 0, len(conns))
	for _, e := range prev {
		seen[e.ID] = true
		ids = append(ids, e.ID)
	}
	for _, id := range conns {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Router 构建 HTTP 路由
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Handle("/crossword", gzhttp.GzipHandler(s.cors(http.HandlerFunc(s.HandleCrossword)))).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ws", s.HandleWS).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.HandleMetrics).Methods(http.MethodGet)
	if s.opts.AdminReload {
		r.HandleFunc("/admin/reload", s.HandleAdminReload).Methods(http.MethodPost)
	}
	r.HandleFunc("/admin/board", s.HandleAdminBoard).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !s.store.Loaded() {
			http.Error(w, "puzzle not loaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	if s.opts.WebDir != "" {
		// 前后端分离：将 / 映射到 web 目录的静态资源
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.WebDir)))
	}
	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	allowed := splitOrigins(s.opts.AllowOrigin)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case containsWildcard(allowed):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && originAllowed(allowed, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LogBoard 在 debug 级别输出当前网格
func LogBoard(st *store.Store) {
	board, err := st.Board()
	if err != nil {
		return
	}
	Log.Debugf("board:\n%s", board)
}
