// Package kanji 负责字符分类、日文相关性过滤、按锚点建立汉字索引与差集计算。
//
// 所有函数都是纯函数：不读写文件、不访问网络、无全局可变状态。
package kanji

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/runenames"
)

const (
	unifiedPrefix = "CJK UNIFIED IDEOGRAPH"
	compatPrefix  = "CJK COMPATIBILITY IDEOGRAPH"

	// runenames 对统一表意文字区段只返回区段标签（例如 "<CJK Ideograph Extension A>"）。
	ideographRangeLabel = "<CJK Ideograph"
)

// Name 返回 r 的规范 Unicode 名称。
//
// 规则：
// - CJK 统一表意文字（含各扩展区）展开为 "CJK UNIFIED IDEOGRAPH-XXXX"
// - 其它只有区段标签的码位（<control>、<Private Use> 等）视为无名称，返回 ""
// - 未分配/非法码位返回 ""
func Name(r rune) string {
	n := runenames.Name(r)
	if strings.HasPrefix(n, ideographRangeLabel) {
		return fmt.Sprintf("%s-%04X", unifiedPrefix, r)
	}
	if strings.HasPrefix(n, "<") {
		return ""
	}
	return n
}

// IsKanji 判断 r 是否为汉字（CJK 统一表意文字或兼容表意文字）。
// 对任意码位都有定义；无名称的码位返回 false。
func IsKanji(r rune) bool {
	n := Name(r)
	return strings.HasPrefix(n, unifiedPrefix) || strings.HasPrefix(n, compatPrefix)
}

// Set 是汉字集合（known set / unknown set 共用）。
type Set map[rune]struct{}

// NewSet 用给定字符构造集合。
func NewSet(rs ...rune) Set {
	s := make(Set, len(rs))
	for _, r := range rs {
		s[r] = struct{}{}
	}
	return s
}

func (s Set) Has(r rune) bool {
	_, ok := s[r]
	return ok
}

// AddText 过滤 text 后把其中的汉字并入集合。
func (s Set) AddText(text string) {
	for _, r := range FilterJapanese(text) {
		if IsKanji(r) {
			s[r] = struct{}{}
		}
	}
}
