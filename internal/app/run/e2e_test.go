package run

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/John-Robertt/kanjiscan/internal/anki"
	"github.com/John-Robertt/kanjiscan/internal/config"
	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/export"
	"github.com/John-Robertt/kanjiscan/internal/known"
	"github.com/John-Robertt/kanjiscan/internal/source"
	"github.com/John-Robertt/kanjiscan/internal/source/epub"
	"github.com/John-Robertt/kanjiscan/internal/source/plaintext"
	"github.com/John-Robertt/kanjiscan/internal/source/subtitle"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:02,000
今日は晴れ。

2
00:01:02,500 --> 00:01:03,000
明日は雨！
`

// ankiStub 是最小的 AnkiConnect：findNotes 返回 notes 的 id，notesInfo 返回 Word 字段。
type ankiStub struct {
	words []string
	calls atomic.Int32
}

func (a *ankiStub) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.calls.Add(1)
		var req struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("请求体不是合法 JSON：%v", err)
			return
		}
		var result any
		switch req.Action {
		case "findNotes":
			ids := make([]int64, 0, len(a.words))
			for i := range a.words {
				ids = append(ids, int64(i+1))
			}
			result = ids
		case "notesInfo":
			notes := make([]map[string]any, 0, len(a.words))
			for i, word := range a.words {
				notes = append(notes, map[string]any{
					"noteId": i + 1,
					"fields": map[string]any{"Word": map[string]any{"value": word, "order": 0}},
				})
			}
			result = notes
		default:
			t.Errorf("未预期的 action：%q", req.Action)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func registry(t *testing.T) source.Registry {
	t.Helper()
	reg, err := source.NewRegistry(epub.New(), subtitle.New(), plaintext.New())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	return reg
}

func deps(t *testing.T, url string, outDir string) Deps {
	t.Helper()
	client := anki.New(url, &http.Client{Timeout: 5 * time.Second}, nil)
	return Deps{
		Registry: registry(t),
		Known:    known.NewResolver(client, nil),
		Exporter: export.Writer{Dir: outDir, Mode: config.ExportFile, Layout: config.LayoutLines},
	}
}

func effFor(target string) config.EffectiveConfig {
	return config.EffectiveConfig{
		Target: target,
		Deck:   "Mining",
		Fields: []string{"Word"},
		Export: config.ExportNone,
		Layout: config.LayoutLines,
		Order:  config.OrderNumber,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func unknownOf(it domain.SourceResult) string { return strings.Join(it.UnknownChars(), "") }

func TestExecute_SubtitleAndTextGroup(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(root, "ep01.srt"), sampleSRT)
	writeFile(t, filepath.Join(root, "novel", "b.txt"), "犬も好き。")
	writeFile(t, filepath.Join(root, "novel", "a.txt"), "猫が好き。")

	stub := &ankiStub{words: []string{"今日", "日本"}}
	srv := stub.serve(t)

	eff := effFor(root)
	eff.Export = config.ExportFile
	eff.Sentences = true

	rr := Execute(context.Background(), eff, deps(t, srv.URL, out))

	if rr.Aborted {
		t.Fatalf("不期望中止：%+v", rr.Items)
	}
	if rr.RunID == "" {
		t.Fatalf("期望生成 run_id")
	}
	if rr.KnownCount != 3 || rr.FilesFound != 3 {
		t.Fatalf("统计不一致：known=%d files=%d", rr.KnownCount, rr.FilesFound)
	}
	if len(rr.Items) != 2 {
		t.Fatalf("期望 2 个来源，实际 %d：%+v", len(rr.Items), rr.Items)
	}

	sub := rr.Items[0]
	if sub.Name != "ep01.srt" || sub.Status != domain.StatusProcessed {
		t.Fatalf("字幕来源不一致：%+v", sub)
	}
	if sub.Unique != 5 || unknownOf(sub) != "晴明雨" {
		t.Fatalf("字幕差集不一致：unique=%d unknown=%q", sub.Unique, unknownOf(sub))
	}
	if sub.Unknown[0].Positions != "0:00:01.000" {
		t.Fatalf("时间戳不一致：%q", sub.Unknown[0].Positions)
	}

	novel := rr.Items[1]
	if novel.Name != "novel" || len(novel.Files) != 2 {
		t.Fatalf("文本组不一致：%+v", novel)
	}
	if novel.Files[0] != filepath.Join("novel", "a.txt") {
		t.Fatalf("组内应按自然顺序：%v", novel.Files)
	}
	if unknownOf(novel) != "猫好犬" {
		t.Fatalf("文本差集不一致：%q", unknownOf(novel))
	}
	if len(novel.Sentences) != 3 || novel.Sentences[2].Text != "犬も好き。" {
		t.Fatalf("例句不一致：%+v", novel.Sentences)
	}

	if strings.Join(rr.TotalUnknown, "") != "晴明雨猫好犬" || rr.Summary.TotalUnknown != 6 {
		t.Fatalf("总未知汉字不一致：%v", rr.TotalUnknown)
	}
	if rr.ExportError != "" {
		t.Fatalf("不期望导出错误：%s", rr.ExportError)
	}
	// 1 个未知汉字产物 + 2 个例句文件
	if len(rr.Artifacts) != 3 {
		t.Fatalf("期望 3 个产物，实际：%v", rr.Artifacts)
	}
	b, err := os.ReadFile(rr.Artifacts[0])
	if err != nil {
		t.Fatalf("读取产物失败：%v", err)
	}
	if string(b) != "ep01.srt\n晴\n明\n雨\nnovel\n猫\n好\n犬\n" {
		t.Fatalf("产物内容不一致：%q", string(b))
	}
	if !strings.HasPrefix(filepath.Base(rr.Artifacts[0]), "unknown_kanji_") {
		t.Fatalf("产物名不一致：%q", rr.Artifacts[0])
	}
}

func TestExecute_CorruptDocumentDoesNotStopRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "01 broken.epub"), "not a zip")
	writeFile(t, filepath.Join(root, "02.srt"), sampleSRT)

	stub := &ankiStub{words: []string{"今"}}
	srv := stub.serve(t)

	rr := Execute(context.Background(), effFor(root), deps(t, srv.URL, t.TempDir()))

	if rr.Aborted || len(rr.Items) != 2 {
		t.Fatalf("不期望中止：%+v", rr)
	}
	if rr.Items[0].Status != domain.StatusFailed || rr.Items[0].ErrorCode != domain.ErrCodeParseFailed {
		t.Fatalf("期望 epub 解析失败：%+v", rr.Items[0])
	}
	if len(rr.Items[0].Unknown) != 0 {
		t.Fatalf("失败来源应贡献空结果：%+v", rr.Items[0])
	}
	if rr.Items[1].Status != domain.StatusProcessed {
		t.Fatalf("其它来源应继续处理：%+v", rr.Items[1])
	}
	if rr.Summary.Processed != 1 || rr.Summary.Failed != 1 {
		t.Fatalf("summary 不一致：%+v", rr.Summary)
	}
}

func TestExecute_NoSourcesAbortsBeforeAnki(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.md"), "漢字")
	out := t.TempDir()

	stub := &ankiStub{words: []string{"今"}}
	srv := stub.serve(t)

	eff := effFor(root)
	eff.Export = config.ExportFile
	rr := Execute(context.Background(), eff, deps(t, srv.URL, out))

	if !rr.Aborted || len(rr.Items) != 1 || rr.Items[0].ErrorCode != domain.ErrCodeNoSources {
		t.Fatalf("期望 no_sources 中止：%+v", rr)
	}
	if stub.calls.Load() != 0 {
		t.Fatalf("没有来源时不应查询 Anki，calls=%d", stub.calls.Load())
	}
	assertEmptyDir(t, out)
}

func TestExecute_NoNotesAborts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.srt"), sampleSRT)
	out := t.TempDir()

	stub := &ankiStub{}
	srv := stub.serve(t)

	eff := effFor(root)
	eff.Export = config.ExportFile
	rr := Execute(context.Background(), eff, deps(t, srv.URL, out))

	if !rr.Aborted || rr.Items[0].ErrorCode != domain.ErrCodeNoNotes {
		t.Fatalf("期望 no_notes 中止：%+v", rr)
	}
	assertEmptyDir(t, out)
}

func TestExecute_AnkiUnreachableAborts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.srt"), sampleSRT)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rr := Execute(context.Background(), effFor(root), deps(t, url, t.TempDir()))

	if !rr.Aborted || rr.Items[0].ErrorCode != domain.ErrCodeAnkiFailed {
		t.Fatalf("期望 anki_failed 中止：%+v", rr)
	}
}

func TestExecute_KnownSetCachedAcrossRuns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.srt"), sampleSRT)

	stub := &ankiStub{words: []string{"今"}}
	srv := stub.serve(t)

	d := deps(t, srv.URL, t.TempDir())
	d.Cache = known.NewCache()

	_ = Execute(context.Background(), effFor(root), d)
	first := stub.calls.Load()
	_ = Execute(context.Background(), effFor(root), d)
	if stub.calls.Load() != first {
		t.Fatalf("期望第二次运行命中缓存：first=%d now=%d", first, stub.calls.Load())
	}
}

type failingExporter struct{}

func (failingExporter) Write(domain.RunReport) (string, error) { return "", errors.New("disk full") }

func (failingExporter) WriteSentences(domain.RunReport) ([]string, error) { return nil, nil }

func TestExecute_ExportFailureIsNotFatal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.srt"), sampleSRT)

	stub := &ankiStub{words: []string{"今"}}
	srv := stub.serve(t)

	d := deps(t, srv.URL, "")
	d.Exporter = failingExporter{}
	eff := effFor(root)
	eff.Export = config.ExportFile

	rr := Execute(context.Background(), eff, d)
	if rr.Aborted || rr.Summary.Processed != 1 {
		t.Fatalf("导出失败不应影响运行：%+v", rr)
	}
	if !strings.HasPrefix(rr.ExportError, domain.ErrCodeExportFailed) {
		t.Fatalf("期望记录导出错误，实际=%q", rr.ExportError)
	}
	if len(rr.Artifacts) != 0 {
		t.Fatalf("不期望产物：%v", rr.Artifacts)
	}
}

type memClipboard struct{ text string }

func (m *memClipboard) WriteAll(text string) error {
	m.text = text
	return nil
}

func TestExecute_Clipboard(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.srt"), sampleSRT)

	stub := &ankiStub{words: []string{"今日明日"}}
	srv := stub.serve(t)

	cb := &memClipboard{}
	d := deps(t, srv.URL, t.TempDir())
	d.Clipboard = cb
	eff := effFor(root)
	eff.Clipboard = true

	rr := Execute(context.Background(), eff, d)
	if !rr.Clipboard {
		t.Fatalf("期望 clipboard=true：%+v", rr)
	}
	if cb.text != "晴\n雨" {
		t.Fatalf("剪贴板内容不一致：%q", cb.text)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败：%v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("期望目录为空，实际 %d 项", len(entries))
	}
}
