// Package export 把定稿后的 report 落盘为时间戳产物，或复制到剪贴板。
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/kanjiscan/internal/app/planner"
	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/infra/fsx"
)

// maxPublishAttempts 限制同名竞争时的重新分配次数。
const maxPublishAttempts = 16

// Writer 把 report 写到 Dir 下。
//
// 约束：
// - 从不覆盖已有文件（同名时分配 _2、_3 ...）
// - 产物时间戳取 report.StartedAt 的本地时间，同一次运行的产物共享时间戳
type Writer struct {
	Dir    string
	Mode   string // file|series
	Layout string // lines|inline
	Logger *slog.Logger
}

func (w Writer) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func (w Writer) plan(rep domain.RunReport, mode string, sentences bool) (planner.Plan, error) {
	st, err := planner.ReadOutState(w.Dir)
	if err != nil {
		return planner.Plan{}, err
	}
	return planner.PlanExport(rep, planner.Options{
		Mode:      mode,
		Layout:    w.Layout,
		Sentences: sentences,
		At:        rep.StartedAt.Local(),
	}, st)
}

// Write 写未知汉字产物，返回其绝对路径。
func (w Writer) Write(rep domain.RunReport) (string, error) {
	p, err := w.plan(rep, w.Mode, false)
	if err != nil {
		return "", err
	}
	name, err := publish(w.Dir, p.Unknown.Name, p.Unknown.Data)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, name)
	w.logger().Info("导出完成", slog.String("path", path))
	return path, nil
}

// WriteSentences 写每个来源的例句文件，返回写出的文件路径。
// 例句总是按来源拆分，与 Mode 无关；全部来源都没有例句时不创建目录，返回 (nil, nil)。
func (w Writer) WriteSentences(rep domain.RunReport) ([]string, error) {
	p, err := w.plan(rep, planner.ModeFile, true)
	if err != nil {
		return nil, err
	}
	if p.SentenceDir == "" {
		return nil, nil
	}
	dir := filepath.Join(w.Dir, p.SentenceDir)
	out := make([]string, 0, len(p.Sentences))
	for _, f := range p.Sentences {
		name, err := publish(dir, f.Name, f.Data)
		if err != nil {
			return out, err
		}
		out = append(out, filepath.Join(dir, name))
	}
	w.logger().Info("例句导出完成", slog.String("dir", dir), slog.Int("files", len(out)))
	return out, nil
}

// publish 以“不覆盖”语义写入 dir/name；若目标在规划后被占用，则重新分配名字。
func publish(dir, name string, data []byte) (string, error) {
	used := map[string]struct{}{}
	cand := name
	for i := 0; i < maxPublishAttempts; i++ {
		err := fsx.WriteFileAtomicNoOverwrite(dir, cand, data)
		if err == nil {
			return cand, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		used[cand] = struct{}{}
		cand = planner.AllocName(name, used)
	}
	return "", fmt.Errorf("无法为 %q 分配未占用的文件名", name)
}

// Sink 是剪贴板一类的文本接收端。
type Sink interface {
	WriteAll(text string) error
}

// CopyUnknown 把 report 的 total_unknown 以每行一个汉字写入 sink。
func CopyUnknown(s Sink, rep domain.RunReport) error {
	if s == nil {
		return errors.New("export: 未配置剪贴板")
	}
	return s.WriteAll(strings.Join(rep.TotalUnknown, "\n"))
}
