package puzzle

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Blocked 表示不可填写的黑格
const Blocked = "."

// Size 网格尺寸
type Size struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Clues 横向/纵向提示文本（按编号顺序）
type Clues struct {
	Across []string `json:"across"`
	Down   []string `json:"down"`
}

// Definition 谜题定义文件的结构（启动时加载到共享存储）
// 示例：{"size":{"rows":2,"cols":2},"grid":["A","B","C","D"],"gridnums":[1,2,3,0],...}
type Definition struct {
	Size     Size     `json:"size"`
	Grid     []string `json:"grid"` // 标准答案，行优先，"." 为黑格
	Clues    Clues    `json:"clues"`
	GridNums []int    `json:"gridnums"`
	Title    string   `json:"title"`
}

// Cells 网格单元总数
func (d *Definition) Cells() int {
	return d.Size.Rows * d.Size.Cols
}

// LoadError 谜题定义结构不一致或无法读取
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load puzzle: %v", e.Err)
	}
	return fmt.Sprintf("load puzzle %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var (
	ErrBadSize      = errors.New("rows and cols must be positive")
	ErrGridLength   = errors.New("grid length does not match rows*cols")
	ErrNumsLength   = errors.New("gridnums length does not match rows*cols")
	ErrCellValue    = errors.New("grid cell must be a single character")
	ErrNoDefinition = errors.New("definition is nil")
	ErrMissingField = errors.New("missing required field")
)

// Validate 检查尺寸与各数组长度是否一致
func (d *Definition) Validate() error {
	if d == nil {
		return &LoadError{Err: ErrNoDefinition}
	}
	if d.Size.Rows <= 0 || d.Size.Cols <= 0 {
		return &LoadError{Err: fmt.Errorf("%w: got %dx%d", ErrBadSize, d.Size.Rows, d.Size.Cols)}
	}
	n := d.Cells()
	if len(d.Grid) != n {
		return &LoadError{Err: fmt.Errorf("%w: got %d, want %d", ErrGridLength, len(d.Grid), n)}
	}
	if len(d.GridNums) != n {
		return &LoadError{Err: fmt.Errorf("%w: got %d, want %d", ErrNumsLength, len(d.GridNums), n)}
	}
	for i, c := range d.Grid {
		if utf8.RuneCountInString(c) != 1 {
			return &LoadError{Err: fmt.Errorf("%w: index %d is %q", ErrCellValue, i, c)}
		}
	}
	return nil
}
