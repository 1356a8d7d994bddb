// Package subtitle 把字幕文件解析为按时间排序的 cue 列表。
package subtitle

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/asticode/go-astisub"

	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/infra/textx"
	"github.com/John-Robertt/kanjiscan/internal/kanji"
	"github.com/John-Robertt/kanjiscan/internal/source"
)

// Extractor 实现 source.Extractor（KindSubtitle）。
type Extractor struct {
	ReadFunc func(path string) ([]byte, error)
}

func New() *Extractor { return &Extractor{ReadFunc: source.ReadFile} }

func (x *Extractor) Kind() domain.Kind { return domain.KindSubtitle }

func (x *Extractor) Read(path string) ([]byte, error) {
	if x.ReadFunc == nil {
		return source.ReadFile(path)
	}
	return x.ReadFunc(path)
}

// Parse 按扩展名选择解析器。
//
// 规则：
// - .ass/.ssa/.vtt：astisub
// - .srt：先用 astisub；失败或得到 0 条时退回宽松的 "-->" 行扫描
// - 文本先经 textx.Decode（BOM / Shift_JIS）
// - 结果按开始时间稳定排序
func (x *Extractor) Parse(name string, data []byte) (source.Text, error) {
	s, err := textx.Decode(data)
	if err != nil {
		return source.Text{}, err
	}

	var cues []kanji.Cue
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".srt":
		cues, err = parseLibrary(astisub.ReadFromSRT, s)
		if err != nil || len(cues) == 0 {
			cues, err = ParseArrow(s)
		}
	case ".ass", ".ssa":
		cues, err = parseLibrary(astisub.ReadFromSSA, s)
	case ".vtt":
		cues, err = parseLibrary(astisub.ReadFromWebVTT, s)
	default:
		return source.Text{}, fmt.Errorf("不支持的字幕格式：%q", ext)
	}
	if err != nil {
		return source.Text{}, err
	}

	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
	return source.Text{Cues: cues}, nil
}

func parseLibrary(read func(io.Reader) (*astisub.Subtitles, error), s string) ([]kanji.Cue, error) {
	subs, err := read(strings.NewReader(s))
	if err != nil {
		return nil, err
	}
	cues := make([]kanji.Cue, 0, len(subs.Items))
	for _, it := range subs.Items {
		if it == nil {
			continue
		}
		cues = append(cues, kanji.Cue{Text: itemText(it), Start: it.StartAt})
	}
	return cues, nil
}

func itemText(it *astisub.Item) string {
	lines := make([]string, 0, len(it.Lines))
	for _, l := range it.Lines {
		var b strings.Builder
		for _, li := range l.Items {
			b.WriteString(li.Text)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}
