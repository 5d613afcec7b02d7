package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"xwordsync/puzzle"
)

// Blank 可填写格子的初始值
const Blank = " "

// NoneRevealed revealedGrid 中表示“尚无揭示”的哨兵值，不是真实格子下标
const NoneRevealed = -1

// DefaultPosition 新连接的默认光标位置
const DefaultPosition = 0

// ErrNotInitialized 在首次加载谜题之前访问状态
var ErrNotInitialized = errors.New("puzzle state not initialized")

// ErrOutOfRange 更新引用了不存在的格子
var ErrOutOfRange = errors.New("cell position out of range")

// ErrCellValue 格子值必须恰好是一个字符
var ErrCellValue = errors.New("cell value must be a single character")

// OutOfRangeError 携带越界位置与网格大小
type OutOfRangeError struct {
	Position int
	Cells    int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%v: %d not in [0,%d)", ErrOutOfRange, e.Position, e.Cells)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// PresenceEntry 连接标识与其光标位置
type PresenceEntry struct {
	ID       string
	Position int
}

// puzzleState 权威谜题状态（只在持锁时访问）
type puzzleState struct {
	rows, cols  int
	grid        []string
	answerGrid  []string
	gridNumbers []int
	cluesAcross []string
	cluesDown   []string
	title       string
	revealed    []int
}

// Store 共享状态存储：谜题状态 + 在线光标表，所有读写都经过同一把锁
type Store struct {
	mu sync.RWMutex

	state *puzzleState

	presence      map[string]int
	presenceOrder []string // 插入顺序，快照按此输出
}

// New 创建空存储；在 LoadFromSource 之前读取状态会返回 ErrNotInitialized
func New() *Store {
	return &Store{presence: make(map[string]int)}
}

// LoadFromSource 清空全部状态与在线表，并从谜题定义重建。
// 定义不合法时返回 *puzzle.LoadError，原有状态保持不变。
func (s *Store) LoadFromSource(def *puzzle.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	n := def.Cells()
	st := &puzzleState{
		rows:        def.Size.Rows,
		cols:        def.Size.Cols,
		grid:        make([]string, n),
		answerGrid:  append([]string(nil), def.Grid...),
		gridNumbers: append([]int(nil), def.GridNums...),
		cluesAcross: append([]string{}, def.Clues.Across...),
		cluesDown:   append([]string{}, def.Clues.Down...),
		title:       def.Title,
		revealed:    []int{NoneRevealed},
	}
	for i, c := range def.Grid {
		if c == puzzle.Blocked {
			st.grid[i] = puzzle.Blocked
		} else {
			st.grid[i] = Blank
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.presence = make(map[string]int)
	s.presenceOrder = nil
	return nil
}

// Loaded 是否已加载过谜题
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != nil
}

// Snapshot 返回完整谜题状态的深拷贝，用于新客户端初始化
func (s *Store) Snapshot() (*Crossword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st == nil {
		return nil, ErrNotInitialized
	}
	return &Crossword{
		Size: Size{Rows: st.rows, Cols: st.cols},
		Clues: Clues{
			Across: append([]string{}, st.cluesAcross...),
			Down:   append([]string{}, st.cluesDown...),
		},
		Grid:         append([]string(nil), st.grid...),
		GridNums:     append([]int(nil), st.gridNumbers...),
		AnswerGrid:   append([]string(nil), st.answerGrid...),
		Title:        st.title,
		RevealedGrid: append([]int(nil), st.revealed...),
	}, nil
}

// SetCell 写入单个格子（后写者胜）。不检查目标是否为黑格。
func (s *Store) SetCell(position int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return ErrNotInitialized
	}
	if position < 0 || position >= len(s.state.grid) {
		return &OutOfRangeError{Position: position, Cells: len(s.state.grid)}
	}
	if utf8.RuneCountInString(value) != 1 {
		return fmt.Errorf("%w: %q", ErrCellValue, value)
	}
	s.state.grid[position] = value
	return nil
}

// MarkRevealed 追加一个已揭示位置，允许重复
func (s *Store) MarkRevealed(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return ErrNotInitialized
	}
	s.state.revealed = append(s.state.revealed, position)
	return nil
}

// SetPresence 新增或更新连接的光标位置；已存在的连接保持原有顺序
func (s *Store) SetPresence(id string, position int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.presence[id]; !ok {
		s.presenceOrder = append(s.presenceOrder, id)
	}
	s.presence[id] = position
}

// RemovePresence 删除连接的光标记录，返回记录是否存在
func (s *Store) RemovePresence(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.presence[id]; !ok {
		return false
	}
	delete(s.presence, id)
	for i, v := range s.presenceOrder {
		if v == id {
			s.presenceOrder = append(s.presenceOrder[:i], s.presenceOrder[i+1:]...)
			break
		}
	}
	return true
}

// ListPresence 按插入顺序返回所有在线记录的副本
func (s *Store) ListPresence() []PresenceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PresenceEntry, 0, len(s.presenceOrder))
	for _, id := range s.presenceOrder {
		out = append(out, PresenceEntry{ID: id, Position: s.presence[id]})
	}
	return out
}

// Board 以文本形式渲染当前网格，每行一条 |...|
func (s *Store) Board() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st == nil {
		return "", ErrNotInitialized
	}
	var b strings.Builder
	for r := 0; r < st.rows; r++ {
		b.WriteString("|")
		for c := 0; c < st.cols; c++ {
			b.WriteString(st.grid[r*st.cols+c])
		}
		b.WriteString("|\n")
	}
	return b.String(), nil
}
