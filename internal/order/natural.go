// Package order 提供两种互相独立的文件/来源名排序策略：
//
//   - Natural：名字切分为数字段/文本段逐段比较（"第2巻" < "第10巻"）
//   - LeadingNumber：只取名字中第一个数字（阿拉伯数字优先，其次汉字数字）作为主键
//
// 调用方按场景选择策略，两者不可互相替代。
package order

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// 阿拉伯数字段，或汉字数字（一〜十）段。
var naturalTokenRE = regexp.MustCompile(`[0-9]+|[一二三四五六七八九十]+`)

var basicKanjiDigit = map[string]int{
	"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

// part 是自然排序键的一段。
// isNum=true 时 digits 为去掉前导 0 的十进制串（"0" 保留为 "0"），避免大数溢出。
type part struct {
	isNum  bool
	digits string
	text   string
}

// Key 是自然排序键（按段从左到右比较）。
type Key []part

// NaturalKey 计算 name 的自然排序键。
//
// 规则：
// - 阿拉伯数字段按数值比较
// - 恰好一个字符的汉字数字段（一〜十）映射为 1〜10；多字符汉字数字段（如 "二十一"）不做组合，按文本处理
// - 其它段转小写后按字典序比较
func NaturalKey(name string) Key {
	var k Key
	last := 0
	for _, loc := range naturalTokenRE.FindAllStringIndex(name, -1) {
		if loc[0] > last {
			k = append(k, textPart(name[last:loc[0]]))
		}
		tok := name[loc[0]:loc[1]]
		switch {
		case tok[0] >= '0' && tok[0] <= '9':
			k = append(k, numPart(tok))
		case basicKanjiDigit[tok] > 0:
			k = append(k, numPart(itoa(basicKanjiDigit[tok])))
		default:
			k = append(k, textPart(tok))
		}
		last = loc[1]
	}
	if last < len(name) {
		k = append(k, textPart(name[last:]))
	}
	return k
}

func textPart(s string) part { return part{text: strings.ToLower(s)} }

func numPart(digits string) part {
	d := strings.TrimLeft(digits, "0")
	if d == "" {
		d = "0"
	}
	return part{isNum: true, digits: d}
}

func itoa(n int) string {
	if n == 10 {
		return "10"
	}
	return string(rune('0' + n))
}

// Compare 返回 -1/0/1。
//
// 数字段与文本段在同一位置相遇时：数字段在前（固定策略）。
// 所有公共段相等时：段数少者在前。
func (k Key) Compare(o Key) int {
	for i := 0; i < len(k) && i < len(o); i++ {
		if c := comparePart(k[i], o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(o):
		return -1
	case len(k) > len(o):
		return 1
	default:
		return 0
	}
}

func comparePart(a, b part) int {
	switch {
	case a.isNum && b.isNum:
		if len(a.digits) != len(b.digits) {
			if len(a.digits) < len(b.digits) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.digits, b.digits)
	case a.isNum:
		return -1
	case b.isNum:
		return 1
	default:
		return strings.Compare(a.text, b.text)
	}
}

// Less 判断 a 是否按自然顺序排在 b 前；键相等时退化为原串比较，保证全序。
func Less(a, b string) bool {
	if c := NaturalKey(a).Compare(NaturalKey(b)); c != 0 {
		return c < 0
	}
	return a < b
}

// SortNatural 按 basename 的自然顺序对路径排序（稳定）。
func SortNatural(paths []string) {
	keys := make(map[string]Key, len(paths))
	for _, p := range paths {
		keys[p] = NaturalKey(filepath.Base(p))
	}
	sort.SliceStable(paths, func(i, j int) bool {
		c := keys[paths[i]].Compare(keys[paths[j]])
		if c != 0 {
			return c < 0
		}
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
}
