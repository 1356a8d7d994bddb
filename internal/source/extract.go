package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/John-Robertt/kanjiscan/internal/domain"
)

const (
	StageRead  = "read"
	StageParse = "parse"
)

// Error 是提取阶段的可追溯错误。
// 上层据此把失败归类为 read_failed / parse_failed，并写入 report。
type Error struct {
	Kind  domain.Kind
	Path  string
	Stage string // StageRead 或 StageParse
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("kind=%s stage=%s path=%q: %v", e.Kind, e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Extract 提取一个逻辑来源的文本。
//
// 规则：
// - src.FileIdx 指向 files；多文件（纯文本组）按 FileIdx 的顺序拼接，文件之间插入换行
// - 任一文件读取/解析失败：整个来源失败（返回 *Error），由上层降级为空结果
// - 字幕的 cue 合并后按开始时间稳定排序
func Extract(reg Registry, src domain.Source, files []domain.SourceFile) (Text, error) {
	x, ok := reg.Get(src.Kind)
	if !ok {
		return Text{}, &Error{Kind: src.Kind, Stage: StageRead, Err: ErrUnsupported}
	}

	var (
		body strings.Builder
		out  Text
	)
	for n, i := range src.FileIdx {
		f := files[i]
		data, err := x.Read(f.AbsPath)
		if err != nil {
			return Text{}, &Error{Kind: src.Kind, Path: f.AbsPath, Stage: StageRead, Err: err}
		}
		t, err := x.Parse(f.Name, data)
		if err != nil {
			return Text{}, &Error{Kind: src.Kind, Path: f.AbsPath, Stage: StageParse, Err: err}
		}
		if n > 0 && body.Len() > 0 {
			body.WriteByte('\n')
		}
		body.WriteString(t.Body)
		out.Cues = append(out.Cues, t.Cues...)
	}
	out.Body = body.String()
	sort.SliceStable(out.Cues, func(i, j int) bool { return out.Cues[i].Start < out.Cues[j].Start })
	return out, nil
}

// ErrorCode 把提取错误映射为 report 的 error_code。
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Stage == StageRead {
		return domain.ErrCodeReadFailed
	}
	return domain.ErrCodeParseFailed
}
