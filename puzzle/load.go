package puzzle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// definitionFile JSON 解码结构；指针与 nil 切片用于区分字段缺失
type definitionFile struct {
	Size     *Size    `json:"size"`
	Grid     []string `json:"grid"`
	GridNums []int    `json:"gridnums"`
	Title    *string  `json:"title"`
	Clues    *Clues   `json:"clues"`
}

func (f *definitionFile) missing() []string {
	var out []string
	if f.Size == nil {
		out = append(out, "size")
	}
	if f.Grid == nil {
		out = append(out, "grid")
	}
	if f.GridNums == nil {
		out = append(out, "gridnums")
	}
	if f.Title == nil {
		out = append(out, "title")
	}
	if f.Clues == nil {
		out = append(out, "clues")
	} else {
		if f.Clues.Across == nil {
			out = append(out, "clues.across")
		}
		if f.Clues.Down == nil {
			out = append(out, "clues.down")
		}
	}
	return out
}

// parseJSON 解码 JSON 谜题定义，缺少任一必需字段即失败
func parseJSON(data []byte) (*Definition, error) {
	var f definitionFile
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return nil, err
	}
	if missing := f.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return &Definition{
		Size:     *f.Size,
		Grid:     f.Grid,
		Clues:    *f.Clues,
		GridNums: f.GridNums,
		Title:    *f.Title,
	}, nil
}

// LoadFile 读取谜题文件（JSON 或 .puz），返回已校验的定义
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	def, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Source = path
			return nil, le
		}
		return nil, &LoadError{Source: path, Err: err}
	}
	return def, nil
}

// Parse 按内容识别格式并解析
func Parse(data []byte) (*Definition, error) {
	var def *Definition
	if IsPuz(data) {
		d, err := ParsePuz(data)
		if err != nil {
			return nil, &LoadError{Err: err}
		}
		def = d
	} else {
		d, err := parseJSON(data)
		if err != nil {
			return nil, &LoadError{Err: err}
		}
		def = d
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
