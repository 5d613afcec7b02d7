package puzzle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Across Lite (.puz) 二进制格式的固定头部偏移
const (
	puzMagicOffset = 0x02
	puzWidthOffset = 0x2c
	puzHeightOfs   = 0x2d
	puzCluesOffset = 0x2e
	puzGridOffset  = 0x34
)

var puzMagic = []byte("ACROSS&DOWN\x00")

var ErrPuzTooShort = errors.New("puz data is too short")

// IsPuz 判断数据是否为 Across Lite 格式
func IsPuz(data []byte) bool {
	end := puzMagicOffset + len(puzMagic)
	return len(data) >= end && bytes.Equal(data[puzMagicOffset:end], puzMagic)
}

// ParsePuz 解析 .puz 文件：读取答案网格、标题与提示，并按标准规则计算编号
func ParsePuz(data []byte) (*Definition, error) {
	if len(data) < puzGridOffset {
		return nil, ErrPuzTooShort
	}
	cols := int(data[puzWidthOffset])
	rows := int(data[puzHeightOfs])
	numClues := int(binary.LittleEndian.Uint16(data[puzCluesOffset : puzCluesOffset+2]))
	n := rows * cols
	if n == 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrBadSize, rows, cols)
	}
	if len(data) < puzGridOffset+2*n {
		return nil, ErrPuzTooShort
	}

	solution := data[puzGridOffset : puzGridOffset+n]
	// 解答之后是玩家填写进度，同步服务不需要
	ofs := puzGridOffset + 2*n

	var err error
	var title string
	if title, ofs, err = puzString(data, ofs); err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}
	// 作者与版权信息
	for i := 0; i < 2; i++ {
		if _, ofs, err = puzString(data, ofs); err != nil {
			return nil, fmt.Errorf("header strings: %w", err)
		}
	}
	texts := make([]string, 0, numClues)
	for i := 0; i < numClues; i++ {
		var clue string
		if clue, ofs, err = puzString(data, ofs); err != nil {
			return nil, fmt.Errorf("clue %d of %d: %w", i+1, numClues, err)
		}
		texts = append(texts, clue)
	}

	def := &Definition{
		Size:     Size{Rows: rows, Cols: cols},
		Grid:     make([]string, n),
		GridNums: make([]int, n),
		Title:    title,
	}
	for i, b := range solution {
		def.Grid[i] = string(rune(b))
	}
	numberGrid(def, texts)
	return def, nil
}

// puzString 读取以 0 结尾的 ISO-8859-1 字符串，返回 UTF-8 文本与下一个偏移
func puzString(data []byte, ofs int) (string, int, error) {
	if ofs >= len(data) {
		return "", ofs, ErrPuzTooShort
	}
	end := bytes.IndexByte(data[ofs:], 0)
	if end < 0 {
		return "", ofs, fmt.Errorf("%w: unterminated string at 0x%x", ErrPuzTooShort, ofs)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(data[ofs : ofs+end])
	if err != nil {
		return "", ofs, err
	}
	return string(s), ofs + end + 1, nil
}

// numberGrid 计算 gridnums 并分配提示：提示按编号排列，同编号时横向在前
func numberGrid(def *Definition, texts []string) {
	rows, cols := def.Size.Rows, def.Size.Cols
	open := func(r, c int) bool {
		return r >= 0 && r < rows && c >= 0 && c < cols && def.Grid[r*cols+c] != Blocked
	}

	next := 0
	take := func(num int) string {
		if next >= len(texts) {
			return fmt.Sprintf("%d.", num)
		}
		t := texts[next]
		next++
		return fmt.Sprintf("%d. %s", num, t)
	}

	num := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !open(r, c) {
				continue
			}
			across := !open(r, c-1) && open(r, c+1)
			down := !open(r-1, c) && open(r+1, c)
			if !across && !down {
				continue
			}
			num++
			def.GridNums[r*cols+c] = num
			if across {
				def.Clues.Across = append(def.Clues.Across, take(num))
			}
			if down {
				def.Clues.Down = append(def.Clues.Down, take(num))
			}
		}
	}
}
