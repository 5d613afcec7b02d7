package store

// Size 网格尺寸
type Size struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Clues 横向/纵向提示
type Clues struct {
	Across []string `json:"across"`
	Down   []string `json:"down"`
}

// Crossword 初始化快照（/crossword 的响应体）
type Crossword struct {
	Size         Size     `json:"size"`
	Clues        Clues    `json:"clues"`
	Grid         []string `json:"grid"`
	GridNums     []int    `json:"gridnums"`
	AnswerGrid   []string `json:"answerGrid"`
	Title        string   `json:"title"`
	RevealedGrid []int    `json:"revealedGrid"`
}
