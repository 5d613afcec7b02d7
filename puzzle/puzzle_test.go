package puzzle

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionValidate(t *testing.T) {
	valid := func() *Definition {
		return &Definition{
			Size:     Size{Rows: 2, Cols: 2},
			Grid:     []string{"A", "B", "C", "D"},
			GridNums: []int{1, 2, 3, 0},
			Title:    "mini",
		}
	}

	tests := []struct {
		name    string
		mutate  func(d *Definition)
		wantErr error
	}{
		{name: "valid", mutate: func(d *Definition) {}},
		{name: "zero rows", mutate: func(d *Definition) { d.Size.Rows = 0 }, wantErr: ErrBadSize},
		{name: "short grid", mutate: func(d *Definition) { d.Grid = d.Grid[:3] }, wantErr: ErrGridLength},
		{name: "missing gridnums", mutate: func(d *Definition) { d.GridNums = nil }, wantErr: ErrNumsLength},
		{name: "multi-char cell", mutate: func(d *Definition) { d.Grid[2] = "CD" }, wantErr: ErrCellValue},
		{name: "empty cell", mutate: func(d *Definition) { d.Grid[0] = "" }, wantErr: ErrCellValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var le *LoadError
			require.True(t, errors.As(err, &le), "want *LoadError, got %T", err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("nil definition", func(t *testing.T) {
		var d *Definition
		assert.ErrorIs(t, d.Validate(), ErrNoDefinition)
	})
}

func TestLoadFileJSON(t *testing.T) {
	def, err := LoadFile(filepath.Join("..", "json", "ExampleCrossword.json"))
	require.NoError(t, err)

	assert.Equal(t, "Example Mini", def.Title)
	assert.Equal(t, Size{Rows: 3, Cols: 3}, def.Size)
	assert.Len(t, def.Grid, 9)
	assert.Equal(t, Blocked, def.Grid[4])
	assert.Equal(t, []string{"1. Feline pet", "3. Honey maker"}, def.Clues.Across)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.json"))
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Contains(t, le.Error(), "nope.json")
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"size":`), 0o644))
		_, err := LoadFile(path)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, path, le.Source)
	})

	t.Run("inconsistent lengths", func(t *testing.T) {
		path := filepath.Join(dir, "short.json")
		body := `{"title":"t","size":{"rows":2,"cols":2},"grid":["A","B","C"],"gridnums":[1,2,3,0],"clues":{"across":[],"down":[]}}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrGridLength)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, path, le.Source)
	})
}

func TestParseRequiresFields(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		missing string
	}{
		{
			name:    "no title or clues",
			body:    `{"size":{"rows":1,"cols":1},"grid":["A"],"gridnums":[1]}`,
			missing: "title, clues",
		},
		{
			name:    "no down clues",
			body:    `{"title":"t","size":{"rows":1,"cols":1},"grid":["A"],"gridnums":[1],"clues":{"across":["1. a"]}}`,
			missing: "clues.down",
		},
		{
			name:    "null title",
			body:    `{"title":null,"size":{"rows":1,"cols":1},"grid":["A"],"gridnums":[1],"clues":{"across":[],"down":[]}}`,
			missing: "title",
		},
		{
			name:    "no size",
			body:    `{"title":"t","grid":["A"],"gridnums":[1],"clues":{"across":[],"down":[]}}`,
			missing: "size",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse([]byte(tt.body))
			assert.Nil(t, def)
			assert.ErrorIs(t, err, ErrMissingField)
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}

	t.Run("empty title and clue lists are present", func(t *testing.T) {
		def, err := Parse([]byte(`{"title":"","size":{"rows":1,"cols":1},"grid":["A"],"gridnums":[1],"clues":{"across":[],"down":[]}}`))
		require.NoError(t, err)
		assert.Equal(t, "", def.Title)
		assert.Empty(t, def.Clues.Across)
	})
}

// buildPuz 构造最小的 .puz 数据（不计算校验和）
func buildPuz(rows, cols int, solution, title string, clues []string) []byte {
	data := make([]byte, puzGridOffset)
	copy(data[puzMagicOffset:], puzMagic)
	data[puzWidthOffset] = byte(cols)
	data[puzHeightOfs] = byte(rows)
	binary.LittleEndian.PutUint16(data[puzCluesOffset:], uint16(len(clues)))

	data = append(data, solution...)
	for _, c := range solution {
		if c == '.' {
			data = append(data, '.')
		} else {
			data = append(data, '-')
		}
	}
	for _, s := range append([]string{title, "author", "(c)"}, clues...) {
		data = append(data, s...)
		data = append(data, 0)
	}
	// notes
	data = append(data, 0)
	return data
}

func TestParsePuz(t *testing.T) {
	data := buildPuz(3, 3, "CATA.OBEE", "Tiny \xe9t\xe9", []string{"Feline pet", "Taxi", "Foot digit", "Honey maker"})
	require.True(t, IsPuz(data))

	def, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "Tiny été", def.Title)
	assert.Equal(t, Size{Rows: 3, Cols: 3}, def.Size)
	assert.Equal(t, []string{"C", "A", "T", "A", ".", "O", "B", "E", "E"}, def.Grid)
	assert.Equal(t, []int{1, 0, 2, 0, 0, 0, 3, 0, 0}, def.GridNums)
	assert.Equal(t, []string{"1. Feline pet", "3. Honey maker"}, def.Clues.Across)
	assert.Equal(t, []string{"1. Taxi", "2. Foot digit"}, def.Clues.Down)
}

func TestParsePuzTruncated(t *testing.T) {
	data := buildPuz(3, 3, "CATA.OBEE", "Tiny", []string{"a", "b", "c", "d"})

	_, err := ParsePuz(data[:puzGridOffset+5])
	assert.ErrorIs(t, err, ErrPuzTooShort)

	// 提示字符串缺少结尾的 0
	cut := len(data) - 3
	_, err = Parse(data[:cut])
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, ErrPuzTooShort)
}
