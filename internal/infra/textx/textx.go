// Package textx 把磁盘上的文本/字幕文件统一解码为 UTF-8。
package textx

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode 把原始字节解码为 UTF-8 字符串。
//
// 规则（按顺序）：
// 1) 有 BOM（UTF-8 / UTF-16LE / UTF-16BE）：按 BOM 解码并去掉 BOM
// 2) 合法 UTF-8：原样返回
// 3) 否则按 Shift_JIS 解码（日文字幕/文本最常见的遗留编码）
//
// 统一把 CRLF/CR 规范化为 LF。
func Decode(b []byte) (string, error) {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	if !utf8.Valid(b) {
		fallback = japanese.ShiftJIS.NewDecoder()
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), b)
	if err != nil {
		return "", err
	}
	out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
	out = bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
	return string(out), nil
}
