package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/kanjiscan/internal/app"
	"github.com/John-Robertt/kanjiscan/internal/config"
	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/export"
	"github.com/John-Robertt/kanjiscan/internal/kanji"
	"github.com/John-Robertt/kanjiscan/internal/known"
	"github.com/John-Robertt/kanjiscan/internal/order"
	"github.com/John-Robertt/kanjiscan/internal/scan"
	"github.com/John-Robertt/kanjiscan/internal/source"
)

// Exporter 是导出阶段的落盘端（默认实现为 export.Writer）。
type Exporter interface {
	Write(rep domain.RunReport) (string, error)
	WriteSentences(rep domain.RunReport) ([]string, error)
}

// Deps 是一次运行的外部协作者。
//
// - Known 必填；Cache 为空时每次运行新建
// - Exporter 为空时跳过文件导出；Clipboard 为空时跳过复制
// - Now 为空时使用 time.Now
type Deps struct {
	Registry  source.Registry
	Known     known.SetResolver
	Cache     *known.Cache
	Exporter  Exporter
	Clipboard export.Sink
	Logger    *slog.Logger
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Execute 执行一次 run，并返回对外稳定的 RunReport。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 规则：
// - 单个来源失败降级为该来源的 failed 条目（空结果），其它来源继续
// - 没有来源文件 / deck 中没有笔记 / Anki 不可达：写入合成条目并 Aborted=true，不导出
// - 导出/剪贴板失败只记录 ExportError，不影响本次运行的结果
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	runID := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("run_id", runID))

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     runID,
		Target:    eff.Target,
		Deck:      eff.Deck,
		Fields:    append([]string(nil), eff.Fields...),
		StartedAt: deps.now(),
		Items:     make([]domain.SourceResult, 0, 32),
	}
	abort := func(code, msg string) domain.RunReport {
		logger.Warn("运行中止", slog.String("code", code), slog.String("msg", msg))
		rr.Aborted = true
		rr.Items = append(rr.Items, syntheticFailed(code, msg))
		rr.FinishedAt = deps.now()
		rr.Finalize()
		return rr
	}

	scanStarted := time.Now()
	files, err := scan.ScanSources(eff.Target, eff.ExcludeDirs)
	if err != nil {
		return abort(domain.ErrCodeReadFailed, fmt.Sprintf("扫描失败：%v", err))
	}
	rr.FilesFound = len(files)
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}
	if len(files) == 0 {
		return abort(domain.ErrCodeNoSources, fmt.Sprintf("在 %q 下没有找到 EPUB/字幕/文本文件", eff.Target))
	}

	groupStarted := time.Now()
	sources := app.GroupSources(files, order.Strategy(eff.Order))
	if obs != nil {
		obs.OnPhaseDone("group", map[string]any{"sources": len(sources)}, time.Since(groupStarted))
	}

	knownStarted := time.Now()
	cache := deps.Cache
	if cache == nil {
		cache = known.NewCache()
	}
	knownSet, err := cache.Resolve(ctx, deps.Known, eff.Deck, eff.Fields)
	if err != nil {
		if errors.Is(err, known.ErrNoNotes) {
			return abort(domain.ErrCodeNoNotes, err.Error())
		}
		return abort(domain.ErrCodeAnkiFailed, fmt.Sprintf("查询 Anki 失败：%v", err))
	}
	rr.KnownCount = len(knownSet)
	if obs != nil {
		obs.OnPhaseDone("known", map[string]any{"kanji": len(knownSet)}, time.Since(knownStarted))
	}

	for i, src := range sources {
		oneStarted := time.Now()
		res := processSource(deps.Registry, src, files, knownSet, eff.Sentences)
		if res.Status == domain.StatusFailed {
			logger.Warn("来源处理失败",
				slog.String("source", res.Name),
				slog.String("code", res.ErrorCode),
				slog.String("err", res.ErrorMsg),
			)
		}
		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnSourceDone(i+1, len(sources), res, time.Since(oneStarted))
		}
	}

	rr.FinishedAt = deps.now()
	rr.Finalize()

	exportStarted := time.Now()
	if exportTail(eff, deps, &rr, logger) && obs != nil {
		obs.OnPhaseDone("export", map[string]any{
			"artifacts": len(rr.Artifacts),
			"clipboard": rr.Clipboard,
		}, time.Since(exportStarted))
	}
	return rr
}

// processSource 处理单个逻辑来源：提取 → 索引 → 差集 →（可选）例句。
func processSource(reg source.Registry, src domain.Source, files []domain.SourceFile, knownSet kanji.Set, sentences bool) domain.SourceResult {
	res := domain.SourceResult{
		Name:    src.Name,
		Kind:    string(src.Kind),
		Series:  src.Series,
		Files:   make([]string, 0, len(src.FileIdx)),
		Status:  domain.StatusProcessed,
		Unknown: []domain.UnknownKanji{},
	}
	for _, idx := range src.FileIdx {
		res.Files = append(res.Files, files[idx].RelPath)
	}

	text, err := source.Extract(reg, src, files)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = source.ErrorCode(err)
		res.ErrorMsg = err.Error()
		return res
	}

	x := text.Index()
	res.Unique = x.Len()
	unknown := kanji.Diff(x, knownSet)
	for _, r := range unknown {
		res.Unknown = append(res.Unknown, domain.UnknownKanji{
			Kanji:     string(r),
			Count:     len(x.Anchors(r)),
			Positions: kanji.DisplayAnchors(x, r),
		})
	}
	if sentences && len(unknown) > 0 {
		for _, ex := range kanji.FirstSentences(text.Sentences(), unknown) {
			res.Sentences = append(res.Sentences, domain.Sentence{
				Kanji: string(ex.Kanji),
				Text:  ex.Sentence,
			})
		}
	}
	return res
}

// exportTail 执行导出/复制；返回是否实际尝试了任何输出。
func exportTail(eff config.EffectiveConfig, deps Deps, rr *domain.RunReport, logger *slog.Logger) bool {
	attempted := false
	fail := func(what string, err error) {
		msg := fmt.Sprintf("%s：%s 失败：%v", domain.ErrCodeExportFailed, what, err)
		logger.Warn("导出失败", slog.String("what", what), slog.Any("err", err))
		if rr.ExportError == "" {
			rr.ExportError = msg
		}
	}

	if eff.Export != config.ExportNone && deps.Exporter != nil {
		attempted = true
		path, err := deps.Exporter.Write(*rr)
		if err != nil {
			fail("写入未知汉字", err)
		} else {
			rr.Artifacts = append(rr.Artifacts, path)
		}
	}
	if eff.Sentences && deps.Exporter != nil {
		attempted = true
		paths, err := deps.Exporter.WriteSentences(*rr)
		rr.Artifacts = append(rr.Artifacts, paths...)
		if err != nil {
			fail("写入例句", err)
		}
	}
	if eff.Clipboard {
		attempted = true
		if err := export.CopyUnknown(deps.Clipboard, *rr); err != nil {
			fail("复制到剪贴板", err)
		} else {
			rr.Clipboard = true
		}
	}
	return attempted
}

func syntheticFailed(code, msg string) domain.SourceResult {
	return domain.SourceResult{
		Name:      "",
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Files:     []string{},
		Unknown:   []domain.UnknownKanji{},
	}
}
