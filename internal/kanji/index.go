package kanji

import (
	"fmt"
	"time"
)

// Anchor 标记一次出现的位置：文档是过滤后文本中的字符下标，字幕是所在 cue 的开始时间。
type Anchor struct {
	Offset int
	At     time.Duration
	Timed  bool
}

// String 渲染锚点：下标原样输出，时间戳为 H:MM:SS.mmm。
func (a Anchor) String() string {
	if !a.Timed {
		return fmt.Sprintf("%d", a.Offset)
	}
	return FormatTimestamp(a.At)
}

// FormatTimestamp 把时长格式化为 H:MM:SS.mmm（负值按 0 处理）。
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// Cue 是一条字幕（文本 + 开始时间）。
type Cue struct {
	Text  string
	Start time.Duration
}

// Index 是 汉字 → 有序锚点列表 的映射。
//
// 约束：
// - 每个汉字至多一个条目；锚点只追加、不覆盖
// - Keys() 按首次出现顺序返回
// - 构造完成后只读
type Index struct {
	order   []rune
	anchors map[rune][]Anchor
}

func newIndex() *Index {
	return &Index{anchors: map[rune][]Anchor{}}
}

func (x *Index) add(r rune, a Anchor) {
	if _, ok := x.anchors[r]; !ok {
		x.order = append(x.order, r)
	}
	x.anchors[r] = append(x.anchors[r], a)
}

// BuildIndex 过滤 text 后，对每个汉字记录其在过滤后字符串中的下标（按字符计）。
func BuildIndex(text string) *Index {
	x := newIndex()
	i := 0
	for _, r := range FilterJapanese(text) {
		if IsKanji(r) {
			x.add(r, Anchor{Offset: i})
		}
		i++
	}
	return x
}

// BuildTimedIndex 按 cue 顺序建立索引，锚点为 cue 的开始时间。
// 同一 cue 内重复出现的汉字会追加多个相同时间戳。
func BuildTimedIndex(cues []Cue) *Index {
	x := newIndex()
	for _, c := range cues {
		for _, r := range FilterJapanese(c.Text) {
			if IsKanji(r) {
				x.add(r, Anchor{At: c.Start, Timed: true})
			}
		}
	}
	return x
}

// Len 返回不同汉字的数量。
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.order)
}

// Keys 按首次出现顺序返回所有汉字（副本）。
func (x *Index) Keys() []rune {
	if x == nil {
		return nil
	}
	return append([]rune(nil), x.order...)
}

// Anchors 返回 r 的完整锚点列表（副本）。
func (x *Index) Anchors(r rune) []Anchor {
	if x == nil {
		return nil
	}
	return append([]Anchor(nil), x.anchors[r]...)
}

// Has 判断索引中是否出现过 r。
func (x *Index) Has(r rune) bool {
	if x == nil {
		return false
	}
	_, ok := x.anchors[r]
	return ok
}
