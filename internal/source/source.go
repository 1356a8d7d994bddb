// Package source 把“来源格式差异”限制在各提取器内部；核心流程只依赖统一接口与稳定的 Text。
package source

import (
	"errors"
	"os"

	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/kanji"
)

// Extractor 是单一来源格式的提取器。
//
// 约束：
// - Read 只负责取得原始字节（可替换，便于测试）
// - Parse 必须是纯函数：相同输入 => 相同输出；不得 panic
// - 单个子文档（例如 EPUB 中的某一章）解析失败应跳过，而不是让整个来源失败
type Extractor interface {
	Kind() domain.Kind
	Read(path string) ([]byte, error)
	Parse(name string, data []byte) (Text, error)
}

// Text 是提取结果。
// 文档/纯文本只有 Body；字幕只有 Cues（按开始时间非递减）。
type Text struct {
	Body string
	Cues []kanji.Cue
}

// Timed 表示该结果是否以时间戳为锚点。
func (t Text) Timed() bool { return len(t.Cues) > 0 }

// Index 按锚点类型建立汉字索引。
func (t Text) Index() *kanji.Index {
	if t.Timed() {
		return kanji.BuildTimedIndex(t.Cues)
	}
	return kanji.BuildIndex(t.Body)
}

// Sentences 把提取结果切成句子（字幕逐条切分）。
func (t Text) Sentences() []string {
	if !t.Timed() {
		return kanji.SplitSentences(t.Body)
	}
	var out []string
	for _, c := range t.Cues {
		out = append(out, kanji.SplitSentences(c.Text)...)
	}
	return out
}

// ReadFile 是 Extractor.Read 的默认实现。
func ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// ErrUnsupported 表示没有注册对应种类的提取器。
var ErrUnsupported = errors.New("source: unsupported kind")
