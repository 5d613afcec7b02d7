package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"xwordsync/store"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20 // 1MB
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(ws *websocket.Conn, queueSize int) *ClientConn {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, queueSize),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃），返回是否入队
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close 关闭发送队列；写协程发完剩余消息后关闭底层连接
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端帧并交给协议处理；每帧处理完再读下一帧。
// 退出时先移出房间，再执行一次断开流程。
func (c *ClientConn) readPump(s *Server, id string) {
	defer func() {
		s.room.Unregister(id)
		if err := s.lifecycle.OnDisconnect(id); err != nil {
			Log.Errorw("disconnect failed", "conn", id, "err", err)
		}
		_ = c.ws.Close()
	}()

	var limiter *rate.Limiter
	if s.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	}

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				Log.Warnw("read failed", "conn", id, "err", err)
			}
			return
		}
		if limiter != nil && !limiter.Allow() {
			s.metrics.IncRateLimited()
			Log.Debugw("rate limited", "conn", id)
			continue
		}
		if err := s.handler.Dispatch(id, payload); err != nil {
			logDropped(id, err)
		}
	}
}

// logDropped 单条消息的错误只影响该消息本身
func logDropped(id string, err error) {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		Log.Warnw("discarding malformed message", "conn", id, "err", err)
	case errors.Is(err, store.ErrOutOfRange):
		Log.Warnw("discarding out of range update", "conn", id, "err", err)
	default:
		Log.Errorw("discarding message", "conn", id, "err", err)
	}
}

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := splitOrigins(s.opts.AllowOrigin)
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowed, r.Header.Get("Origin"))
		},
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func containsWildcard(allowed []string) bool {
	for _, a := range allowed {
		if a == "*" {
			return true
		}
	}
	return false
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// HandleWS WebSocket 接入：分配标识、登记在线并启动读写协程
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrade.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	id := s.lifecycle.NextID()
	client := NewClientConn(ws, s.opts.SendQueue)
	err = s.lifecycle.Accept(id, func(assign []byte) {
		client.Enqueue(assign)
		s.room.Register(id, client)
	})
	if err != nil {
		Log.Errorw("connect failed", "conn", id, "err", err)
		_ = ws.Close()
		return
	}

	go client.writePump()
	go client.readPump(s, id)
}
