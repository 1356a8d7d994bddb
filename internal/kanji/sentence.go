package kanji

import "strings"

// sentenceTerminators 是句子分隔符（终止符保留在句尾）。
const sentenceTerminators = "。！？．!?\n"

// SplitSentences 按日文/西文句末符号切分 text。
// 终止符归属前一句；首尾空白被裁掉；空句被丢弃。
func SplitSentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if strings.ContainsRune(sentenceTerminators, r) {
			flush()
		}
	}
	flush()
	return out
}

// Example 是某个汉字的首个例句。
type Example struct {
	Kanji    rune
	Sentence string
}

// FirstSentences 为 chars 中的每个汉字找到第一个包含它的句子。
// 结果按 chars 顺序；找不到例句的汉字被跳过。
// 句子只扫描一遍，所有汉字都找到例句后提前结束。
func FirstSentences(sentences []string, chars []rune) []Example {
	first := make(map[rune]int, len(chars))
	for _, r := range chars {
		first[r] = -1
	}
	missing := len(first)
	for i, s := range sentences {
		if missing == 0 {
			break
		}
		for _, r := range s {
			if at, ok := first[r]; ok && at < 0 {
				first[r] = i
				missing--
			}
		}
	}

	var out []Example
	for _, r := range chars {
		if at := first[r]; at >= 0 {
			out = append(out, Example{Kanji: r, Sentence: sentences[at]})
		}
	}
	return out
}
