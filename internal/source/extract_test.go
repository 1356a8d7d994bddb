package source

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/kanji"
)

type stubExtractor struct {
	kind domain.Kind

	readErr  error
	parseErr map[string]error
	texts    map[string]Text

	readCalls []string
}

func (x *stubExtractor) Kind() domain.Kind { return x.kind }

func (x *stubExtractor) Read(path string) ([]byte, error) {
	x.readCalls = append(x.readCalls, path)
	if x.readErr != nil {
		return nil, x.readErr
	}
	return []byte(path), nil
}

func (x *stubExtractor) Parse(name string, data []byte) (Text, error) {
	if err := x.parseErr[name]; err != nil {
		return Text{}, err
	}
	return x.texts[name], nil
}

func TestExtract_ConcatInGivenOrder(t *testing.T) {
	x := &stubExtractor{
		kind: domain.KindText,
		texts: map[string]Text{
			"1.txt": {Body: "一章"},
			"2.txt": {Body: "二章"},
		},
	}
	reg, err := NewRegistry(x)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	files := []domain.SourceFile{
		{AbsPath: "/t/1.txt", Name: "1.txt"},
		{AbsPath: "/t/2.txt", Name: "2.txt"},
	}

	got, err := Extract(reg, domain.Source{Kind: domain.KindText, FileIdx: []int{1, 0}}, files)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got.Body != "二章\n一章" {
		t.Fatalf("拼接顺序不正确：%q", got.Body)
	}
	if len(x.readCalls) != 2 || x.readCalls[0] != "/t/2.txt" {
		t.Fatalf("读取顺序不正确：%v", x.readCalls)
	}
}

func TestExtract_CuesSortedByStart(t *testing.T) {
	x := &stubExtractor{
		kind: domain.KindSubtitle,
		texts: map[string]Text{
			"a.srt": {Cues: []kanji.Cue{{Text: "晴れる", Start: 5 * time.Second}, {Text: "雨", Start: time.Second}}},
		},
	}
	reg, _ := NewRegistry(x)

	got, err := Extract(reg, domain.Source{Kind: domain.KindSubtitle, FileIdx: []int{0}}, []domain.SourceFile{{AbsPath: "/a.srt", Name: "a.srt"}})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !got.Timed() || got.Cues[0].Text != "雨" {
		t.Fatalf("cue 未按时间排序：%+v", got.Cues)
	}
}

func TestExtract_StageErrors(t *testing.T) {
	files := []domain.SourceFile{{AbsPath: "/b.epub", Name: "b.epub"}}
	src := domain.Source{Kind: domain.KindDocument, FileIdx: []int{0}}

	reg, _ := NewRegistry(&stubExtractor{kind: domain.KindDocument, readErr: os.ErrNotExist})
	_, err := Extract(reg, src, files)
	var se *Error
	if !errors.As(err, &se) || se.Stage != StageRead {
		t.Fatalf("期望 read 阶段错误，实际 %v", err)
	}
	if ErrorCode(err) != domain.ErrCodeReadFailed {
		t.Fatalf("期望 read_failed，实际 %q", ErrorCode(err))
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("应可 Unwrap 到原始错误：%v", err)
	}

	reg, _ = NewRegistry(&stubExtractor{kind: domain.KindDocument, parseErr: map[string]error{"b.epub": errors.New("zip: not a valid zip file")}})
	_, err = Extract(reg, src, files)
	if ErrorCode(err) != domain.ErrCodeParseFailed {
		t.Fatalf("期望 parse_failed，实际 %q (%v)", ErrorCode(err), err)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	reg, _ := NewRegistry()
	_, err := Extract(reg, domain.Source{Kind: domain.KindDocument}, nil)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("期望 ErrUnsupported，实际 %v", err)
	}
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(&stubExtractor{kind: domain.KindText}, &stubExtractor{kind: domain.KindText})
	if err == nil {
		t.Fatalf("期望重复注册报错")
	}
}

func TestText_SentencesAndIndex(t *testing.T) {
	doc := Text{Body: "今日は晴れ。明日は雨！"}
	if got := doc.Sentences(); len(got) != 2 || got[1] != "明日は雨！" {
		t.Fatalf("文档切句不正确：%v", got)
	}
	if doc.Index().Len() != 5 {
		t.Fatalf("期望 5 个不同汉字，实际 %d", doc.Index().Len())
	}

	sub := Text{Cues: []kanji.Cue{{Text: "雨が降る。晴れ", Start: time.Second}}}
	if got := sub.Sentences(); len(got) != 2 {
		t.Fatalf("字幕切句不正确：%v", got)
	}
	if a := sub.Index().Anchors('降'); len(a) != 1 || !a[0].Timed {
		t.Fatalf("字幕锚点应为时间戳：%+v", a)
	}
}
