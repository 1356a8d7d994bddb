package kanji

import (
	"strings"
	"unicode"
)

// japaneseExtra 是 \p{N}、\p{Lu}、Radical、Unified_Ideograph 之外额外保留的字符区间：
// ○ ◯ 々〆〇 〻 平假名 ゝゞ 片假名 ー 全角数字 全角大写字母 半角片假名。
var japaneseExtra = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x25CB, Hi: 0x25CB, Stride: 1},
		{Lo: 0x25EF, Hi: 0x25EF, Stride: 1},
		{Lo: 0x3005, Hi: 0x3007, Stride: 1},
		{Lo: 0x303B, Hi: 0x303B, Stride: 1},
		{Lo: 0x3041, Hi: 0x3096, Stride: 1},
		{Lo: 0x309D, Hi: 0x309E, Stride: 1},
		{Lo: 0x30A1, Hi: 0x30FA, Stride: 1},
		{Lo: 0x30FC, Hi: 0x30FC, Stride: 1},
		{Lo: 0xFF10, Hi: 0xFF19, Stride: 1},
		{Lo: 0xFF21, Hi: 0xFF3A, Stride: 1},
		{Lo: 0xFF66, Hi: 0xFF9D, Stride: 1},
	},
}

var japaneseTables = []*unicode.RangeTable{
	unicode.Number,
	unicode.Upper,
	unicode.Radical,
	unicode.Unified_Ideograph,
	japaneseExtra,
}

// IsJapaneseRelevant 判断 r 是否会被 FilterJapanese 保留。
func IsJapaneseRelevant(r rune) bool {
	return unicode.IsOneOf(japaneseTables, r)
}

// FilterJapanese 删除所有“非日文相关”的字符，保持剩余字符的相对顺序。
//
// 约束：按码位处理（不会拆开多字节编码）；幂等。
func FilterJapanese(s string) string {
	return strings.Map(func(r rune) rune {
		if IsJapaneseRelevant(r) {
			return r
		}
		return -1
	}, s)
}
