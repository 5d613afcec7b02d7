package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// 事件名（WebSocket 文本帧中的 event 字段）
const (
	EventClientGridUpdate     = "clientGridUpdate"
	EventClientPositionUpdate = "clientPositionUpdate"
	EventServerGridUpdate     = "serverGridUpdate"
	EventServerPositionUpdate = "serverPositionUpdate"
	EventServerAssignID       = "serverAssignID"
	EventServerPuzzleReload   = "serverPuzzleReload"
)

// 网格更新的 method 取值
const (
	MethodManual   = "manual"
	MethodRevealed = "revealed"
)

// ErrMalformedMessage 客户端载荷无法解析
var ErrMalformedMessage = errors.New("malformed message")

// Envelope 上下行共用的帧结构
// 示例：{"event":"clientGridUpdate","data":"{\"method\":\"manual\",\"position\":1,\"value\":\"B\"}"}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// GridUpdate 网格更新的三种形态：ManualEntry / Reveal / UnknownUpdate
type GridUpdate interface {
	gridUpdate()
}

// ManualEntry 手动填写：grid[Position] = Value
type ManualEntry struct {
	Position int
	Value    string
}

// Reveal 揭示答案：Position 追加到 revealedGrid
type Reveal struct {
	Position int
}

// UnknownUpdate 未识别的 method，不修改状态
type UnknownUpdate struct {
	Method string
}

func (ManualEntry) gridUpdate()   {}
func (Reveal) gridUpdate()        {}
func (UnknownUpdate) gridUpdate() {}

// Position 光标/格子下标；兼容数字与数字字符串两种写法
type Position int

func (p *Position) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("position %q: %w", s, err)
		}
		*p = Position(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = Position(n)
	return nil
}

type gridUpdateMessage struct {
	Method   *string   `json:"method"`
	Position *Position `json:"position"`
	Value    *string   `json:"value"`
}

type positionUpdateMessage struct {
	Position *Position `json:"position"`
}

// PresenceSnapshot 全量在线光标（位置更新时广播）
type PresenceSnapshot struct {
	IDs       []string `json:"websocketID"`
	Positions []int    `json:"position"`
}

// PositionsSnapshot 仅位置（断开连接时广播）
type PositionsSnapshot struct {
	Positions []int `json:"position"`
}

// unwrapText 载荷既可以是 JSON 对象，也可以是包含 JSON 文本的字符串
func unwrapText(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}
	if data[0] != '"' {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return []byte(s), nil
}

// ParseGridUpdate 解析网格更新载荷；载荷必须是带 method 的 JSON 对象，缺少必要字段视为格式错误
func ParseGridUpdate(data []byte) (GridUpdate, error) {
	text, err := unwrapText(data)
	if err != nil {
		return nil, err
	}
	text = bytes.TrimSpace(text)
	if len(text) == 0 || text[0] != '{' {
		return nil, fmt.Errorf("%w: grid update must be an object", ErrMalformedMessage)
	}
	var m gridUpdateMessage
	if err := json.Unmarshal(text, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.Method == nil {
		return nil, fmt.Errorf("%w: missing method", ErrMalformedMessage)
	}
	switch *m.Method {
	case MethodManual:
		if m.Position == nil || m.Value == nil {
			return nil, fmt.Errorf("%w: manual update needs position and value", ErrMalformedMessage)
		}
		if utf8.RuneCountInString(*m.Value) != 1 {
			return nil, fmt.Errorf("%w: cell value %q is not a single character", ErrMalformedMessage, *m.Value)
		}
		return ManualEntry{Position: int(*m.Position), Value: *m.Value}, nil
	case MethodRevealed:
		if m.Position == nil {
			return nil, fmt.Errorf("%w: revealed update needs position", ErrMalformedMessage)
		}
		return Reveal{Position: int(*m.Position)}, nil
	default:
		return UnknownUpdate{Method: *m.Method}, nil
	}
}

// ParsePositionUpdate 解析光标位置载荷
func ParsePositionUpdate(data []byte) (int, error) {
	text, err := unwrapText(data)
	if err != nil {
		return 0, err
	}
	var m positionUpdateMessage
	if err := json.Unmarshal(text, &m); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.Position == nil {
		return 0, fmt.Errorf("%w: missing position", ErrMalformedMessage)
	}
	return int(*m.Position), nil
}

// ParseEnvelope 解析入站帧
func ParseEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Event == "" {
		return env, fmt.Errorf("%w: missing event", ErrMalformedMessage)
	}
	return env, nil
}

// encodeFrame 用原始 data 字节组帧；data 按字节原样写入，不做重新格式化
func encodeFrame(event string, data json.RawMessage) ([]byte, error) {
	ev, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	buf := make([]byte, 0, len(ev)+len(data)+20)
	buf = append(buf, `{"event":`...)
	buf = append(buf, ev...)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')
	return buf, nil
}

// encodeTextFrame 将 v 序列化为 JSON 文本，再作为字符串放入 data
func encodeTextFrame(event string, v any) ([]byte, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(string(text))
	if err != nil {
		return nil, err
	}
	return encodeFrame(event, data)
}

// encodeStringFrame data 为普通字符串
func encodeStringFrame(event, s string) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return encodeFrame(event, data)
}
