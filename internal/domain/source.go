package domain

import "strings"

// Kind 是来源的种类，决定使用哪个提取器。
type Kind string

const (
	KindDocument Kind = "document" // .epub
	KindSubtitle Kind = "subtitle" // .srt/.ass/.ssa/.vtt
	KindText     Kind = "text"     // .txt（按父目录合并）
)

var extKinds = map[string]Kind{
	".epub": KindDocument,
	".srt":  KindSubtitle,
	".ass":  KindSubtitle,
	".ssa":  KindSubtitle,
	".vtt":  KindSubtitle,
	".txt":  KindText,
}

// KindOfExt 按扩展名（大小写不敏感，需带 '.'）判断来源种类。
func KindOfExt(ext string) (Kind, bool) {
	k, ok := extKinds[strings.ToLower(ext)]
	return k, ok
}

// SourceFile 描述一次扫描得到的候选文件（只做 stat，不读内容）。
//
// 不变量：
// - AbsPath 必须是 clean + absolute
// - Name 是带扩展名的文件名，用于展示与排序
// - Series 是父目录名（按系列导出、纯文本合并时的分组键）
type SourceFile struct {
	AbsPath string
	RelPath string
	Name    string
	Ext     string // 小写，例如 ".epub"
	Kind    Kind
	Series  string
	Size    int64
}

// Source 是一个逻辑来源：单个文档/字幕文件，或同一目录下合并的纯文本文件组。
// 为了数据局部性，Source 只保存文件下标（指向 []SourceFile）。
type Source struct {
	Name    string
	Kind    Kind
	Series  string
	FileIdx []int
}
