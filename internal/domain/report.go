package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/John-Robertt/kanjiscan/internal/kanji"
)

const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

const (
	ErrCodeReadFailed     = "read_failed"
	ErrCodeParseFailed    = "parse_failed"
	ErrCodeNoSources      = "no_sources"
	ErrCodeNoNotes        = "no_notes"
	ErrCodeAnkiFailed     = "anki_failed"
	ErrCodeExportFailed   = "export_failed"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
//
// 约束：一次运行内逐个来源追加；Finalize 之后不再修改。
type RunReport struct {
	RunID  string   `json:"run_id"`
	Target string   `json:"target"`
	Deck   string   `json:"deck"`
	Fields []string `json:"fields"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	KnownCount int  `json:"known_count"`
	FilesFound int  `json:"files_found"`
	Aborted    bool `json:"aborted"`

	Summary ReportSummary  `json:"summary"`
	Items   []SourceResult `json:"items"`

	// TotalUnknown 是所有来源 unknown 的并集（按首次出现顺序）。
	TotalUnknown []string `json:"total_unknown"`

	Artifacts   []string `json:"artifacts"`
	Clipboard   bool     `json:"clipboard"`
	ExportError string   `json:"export_error,omitempty"`
}

type ReportSummary struct {
	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
	TotalUnknown int `json:"total_unknown"`
}

// SourceResult 是单个逻辑来源的结果。
type SourceResult struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Series string   `json:"series"`
	Files  []string `json:"files"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Unique 是该来源中不同汉字的数量。
	Unique    int            `json:"unique"`
	Unknown   []UnknownKanji `json:"unknown"`
	Sentences []Sentence     `json:"sentences,omitempty"`
}

// UnknownKanji 按首次出现顺序排列；Positions 是展示用的锚点串（最多 10 个）。
type UnknownKanji struct {
	Kanji     string `json:"kanji"`
	Count     int    `json:"count"`
	Positions string `json:"positions"`
}

// Sentence 是某个 unknown 汉字的首个例句。
type Sentence struct {
	Kanji string `json:"kanji"`
	Text  string `json:"text"`
}

// UnknownChars 返回 unknown 汉字串列表（保持顺序）。
func (r SourceResult) UnknownChars() []string {
	out := make([]string, 0, len(r.Unknown))
	for _, u := range r.Unknown {
		out = append(out, u.Kanji)
	}
	return out
}

// UnknownRunes 返回 unknown 汉字（保持顺序）。
func (r SourceResult) UnknownRunes() []rune {
	out := make([]rune, 0, len(r.Unknown))
	for _, u := range r.Unknown {
		for _, c := range u.Kanji {
			out = append(out, c)
			break
		}
	}
	return out
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 保持处理顺序；name=="" 的合成条目（no_sources/no_notes 等）稳定地移到最后
// 3) 计算 summary 与 total_unknown（并集，按首次出现顺序）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].Name != "" && r.Items[j].Name == ""
	})

	sets := make([][]rune, 0, len(r.Items))
	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusFailed:
			s.Failed++
		}
		sets = append(sets, it.UnknownRunes())
	}
	total := RuneStrings(kanji.Aggregate(sets...))
	s.TotalUnknown = len(total)
	r.Summary = s
	r.TotalUnknown = total
}

// RuneStrings 把每个字符转成单字符串（保持顺序，nil 输入返回空切片）。
func RuneStrings(rs []rune) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, string(r))
	}
	return out
}

// MarshalJSON 集中约束输出的稳定性：nil 切片统一输出为 []。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Fields == nil {
		a.Fields = []string{}
	}
	if a.Items == nil {
		a.Items = []SourceResult{}
	}
	if a.TotalUnknown == nil {
		a.TotalUnknown = []string{}
	}
	if a.Artifacts == nil {
		a.Artifacts = []string{}
	}
	return json.Marshal(a)
}
