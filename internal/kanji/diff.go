package kanji

import (
	"sort"
	"strings"
)

const (
	// DisplayAnchorLimit 是展示时最多列出的锚点数。
	DisplayAnchorLimit = 10
	// displayEllipsisOver 表示锚点总数超过该值时追加 " ..."。
	displayEllipsisOver = 5
)

// Diff 返回索引中出现但不在 known 中的汉字。
//
// 顺序：按首次出现的锚点升序（文档按下标、字幕按时间）；
// 锚点相同时保持首次出现顺序（稳定排序）。
func Diff(x *Index, known Set) []rune {
	var out []rune
	for _, r := range x.Keys() {
		if !known.Has(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return anchorLess(x.anchors[out[i]][0], x.anchors[out[j]][0])
	})
	return out
}

func anchorLess(a, b Anchor) bool {
	if a.Timed || b.Timed {
		return a.At < b.At
	}
	return a.Offset < b.Offset
}

// Aggregate 返回多个集合的并集，按首次出现顺序（先按集合顺序，再按集合内顺序）。
func Aggregate(sets ...[]rune) []rune {
	seen := Set{}
	var out []rune
	for _, s := range sets {
		for _, r := range s {
			if seen.Has(r) {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// DisplayAnchors 渲染 r 的锚点用于展示：最多前 10 个，总数超过 5 时追加 " ..."。
// 这是展示层截断，索引本身保留全部锚点。
func DisplayAnchors(x *Index, r rune) string {
	all := x.anchors[r]
	n := len(all)
	if n > DisplayAnchorLimit {
		n = DisplayAnchorLimit
	}
	parts := make([]string, 0, n)
	for _, a := range all[:n] {
		parts = append(parts, a.String())
	}
	s := strings.Join(parts, ", ")
	if len(all) > displayEllipsisOver {
		s += " ..."
	}
	return s
}
