package planner

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/kanji"
)

const (
	ModeFile   = "file"
	ModeSeries = "series"

	LayoutLines  = "lines"
	LayoutInline = "inline"
)

// StampLayout 是导出产物名中的时间戳格式（YYYYMMDDHHMMSS）。
const StampLayout = "20060102150405"

// Options 描述一次导出的形态。
type Options struct {
	Mode      string // file|series
	Layout    string // lines|inline
	Sentences bool
	At        time.Time
}

// File 是一个待写入的产物。
type File struct {
	Name string
	Data []byte
}

// Plan 是确定性的导出计划（不做任何写入）。
//
// 不变量：
// - Unknown.Name 不与 ExistingNames 冲突
// - SentenceDir 为空表示不需要创建例句目录
type Plan struct {
	OutDir      string
	Unknown     File
	SentenceDir string
	Sentences   []File
}

// OutState 是导出目录的现状（只做 ReadDir，不读文件内容）。
type OutState struct {
	OutDir        string
	ExistingNames map[string]struct{}
}

// ReadOutState 读取导出目录现有的名字；目录不存在时返回空状态且不报错。
func ReadOutState(outDir string) (OutState, error) {
	st := OutState{
		OutDir:        outDir,
		ExistingNames: map[string]struct{}{},
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return OutState{}, err
	}
	for _, e := range entries {
		st.ExistingNames[e.Name()] = struct{}{}
	}
	return st, nil
}

// PlanExport 基于已定稿的 report 生成导出计划。
//
// 规则：
// - 产物名 unknown_kanji_<stamp>.txt；同名已存在时依次尝试 _2、_3 ...
// - file：每个来源一行名字，随后按 layout 写未知汉字；未知集为空也写名字行
// - series：按 Series 合并来源，组内未知汉字取并集（首次出现顺序）
// - Sentences：每个有例句的来源一个文件，放在 unknown_kanji_sentences_<stamp>/ 下
// - 全部来源都没有例句时不规划例句目录
func PlanExport(rep domain.RunReport, opt Options, st OutState) (Plan, error) {
	if opt.Mode != ModeFile && opt.Mode != ModeSeries {
		return Plan{}, fmt.Errorf("非法导出模式：%q", opt.Mode)
	}
	stamp := opt.At.Format(StampLayout)

	used := make(map[string]struct{}, len(st.ExistingNames)+2)
	for n := range st.ExistingNames {
		used[n] = struct{}{}
	}

	p := Plan{OutDir: st.OutDir}
	p.Unknown.Name = AllocName("unknown_kanji_"+stamp+".txt", used)
	used[p.Unknown.Name] = struct{}{}

	blocks := fileBlocks(rep)
	if opt.Mode == ModeSeries {
		blocks = seriesBlocks(rep)
	}
	var buf bytes.Buffer
	for _, b := range blocks {
		writeBlock(&buf, b, opt.Layout)
	}
	p.Unknown.Data = buf.Bytes()

	if !opt.Sentences {
		return p, nil
	}
	files := sentenceFiles(rep)
	if len(files) == 0 {
		return p, nil
	}
	p.SentenceDir = AllocName("unknown_kanji_sentences_"+stamp, used)
	p.Sentences = files
	return p, nil
}

type block struct {
	name  string
	kanji []string
}

func fileBlocks(rep domain.RunReport) []block {
	out := make([]block, 0, len(rep.Items))
	for _, it := range rep.Items {
		if it.Name == "" {
			continue
		}
		out = append(out, block{name: it.Name, kanji: it.UnknownChars()})
	}
	return out
}

func seriesBlocks(rep domain.RunReport) []block {
	index := map[string]int{}
	var names []string
	var sets [][][]rune
	for _, it := range rep.Items {
		if it.Name == "" {
			continue
		}
		i, ok := index[it.Series]
		if !ok {
			i = len(names)
			index[it.Series] = i
			names = append(names, it.Series)
			sets = append(sets, nil)
		}
		sets[i] = append(sets[i], it.UnknownRunes())
	}
	out := make([]block, 0, len(names))
	for i, name := range names {
		out = append(out, block{name: name, kanji: domain.RuneStrings(kanji.Aggregate(sets[i]...))})
	}
	return out
}

func writeBlock(buf *bytes.Buffer, b block, layout string) {
	buf.WriteString(b.name)
	buf.WriteByte('\n')
	if layout == LayoutInline {
		if len(b.kanji) > 0 {
			buf.WriteString(strings.Join(b.kanji, ""))
			buf.WriteByte('\n')
		}
		return
	}
	for _, k := range b.kanji {
		buf.WriteString(k)
		buf.WriteByte('\n')
	}
}

func sentenceFiles(rep domain.RunReport) []File {
	used := map[string]struct{}{}
	var out []File
	for _, it := range rep.Items {
		if it.Name == "" || len(it.Sentences) == 0 {
			continue
		}
		var buf bytes.Buffer
		for _, s := range it.Sentences {
			buf.WriteString(s.Kanji)
			buf.WriteByte('\t')
			buf.WriteString(s.Text)
			buf.WriteByte('\n')
		}
		name := AllocName(safeName(strings.TrimSuffix(it.Name, filepath.Ext(it.Name)))+".txt", used)
		used[name] = struct{}{}
		out = append(out, File{Name: name, Data: buf.Bytes()})
	}
	return out
}

// safeName 把来源名变成单层文件名（去掉路径分隔符等）。
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// AllocName 返回 name 或其第一个未占用的 "_N" 变体（N 从 2 开始）。
func AllocName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}
