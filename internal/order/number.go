package order

import (
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// NoNumber 表示名字中没有可识别的数字；按 LeadingNumber 排序时排在最后。
const NoNumber int64 = math.MaxInt64

var (
	arabicRunRE = regexp.MustCompile(`[0-9０-９]+`)
	kanjiRunRE  = regexp.MustCompile(`[一二三四五六七八九十百千万億兆]+`)
)

var (
	kanjiDigit = map[rune]int64{
		'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
		'六': 6, '七': 7, '八': 8, '九': 9,
	}
	kanjiSmallUnit = map[rune]int64{'十': 10, '百': 100, '千': 1000}
	kanjiBigUnit   = map[rune]int64{'万': 1e4, '億': 1e8, '兆': 1e12}
)

// LeadingNumber 提取 name 中第一个数字作为排序主键。
//
// 规则（按顺序）：
// 1) 第一段阿拉伯数字（含全角）："vol3.epub" → 3
// 2) 否则第一段汉字数字，按位值组合："二十一.epub" → 21，"一万二千" → 12000
// 3) 否则返回 NoNumber
//
// 数值超出 int64 时截断为 NoNumber-1（仍排在无数字的名字之前）。
func LeadingNumber(name string) int64 {
	if m := arabicRunRE.FindString(name); m != "" {
		n, err := strconv.ParseInt(toASCIIDigits(m), 10, 64)
		if err != nil {
			return maxNumber
		}
		return n
	}
	if m := kanjiRunRE.FindString(name); m != "" {
		return kanjiToNumber(m)
	}
	return NoNumber
}

func toASCIIDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
}

// kanjiToNumber 把汉字数字串按位值组合为整数。
// 连续的基本数字按十进制拼接（"一二" → 12）。中间结果饱和在 maxNumber。
func kanjiToNumber(s string) int64 {
	var total, section, digit int64
	for _, r := range s {
		if d, ok := kanjiDigit[r]; ok {
			digit = satAdd(satMul(digit, 10), d)
			continue
		}
		if u, ok := kanjiSmallUnit[r]; ok {
			if digit == 0 {
				digit = 1
			}
			section = satAdd(section, satMul(digit, u))
			digit = 0
			continue
		}
		if u, ok := kanjiBigUnit[r]; ok {
			section = satAdd(section, digit)
			if section == 0 {
				section = 1
			}
			total = satAdd(total, satMul(section, u))
			section, digit = 0, 0
		}
	}
	return satAdd(satAdd(total, section), digit)
}

// maxNumber 是可表示的最大序号，仍小于 NoNumber。
const maxNumber = NoNumber - 1

// satAdd / satMul 只处理非负数。
func satAdd(a, b int64) int64 {
	if a > maxNumber-b {
		return maxNumber
	}
	return a + b
}

func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > maxNumber/b {
		return maxNumber
	}
	return a * b
}

// SortByLeadingNumber 按 (LeadingNumber(basename), basename) 排序（稳定）。
func SortByLeadingNumber(paths []string) {
	type key struct {
		n    int64
		base string
	}
	keys := make(map[string]key, len(paths))
	for _, p := range paths {
		b := filepath.Base(p)
		keys[p] = key{n: LeadingNumber(b), base: b}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := keys[paths[i]], keys[paths[j]]
		if a.n != b.n {
			return a.n < b.n
		}
		return a.base < b.base
	})
}

// Strategy 选择排序策略。
type Strategy string

const (
	ByNumber  Strategy = "number"
	ByNatural Strategy = "natural"
)

// Sort 按策略对路径排序；未知策略按 ByNumber 处理。
func Sort(paths []string, s Strategy) {
	if s == ByNatural {
		SortNatural(paths)
		return
	}
	SortByLeadingNumber(paths)
}
