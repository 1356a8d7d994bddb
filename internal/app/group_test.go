package app

import (
	"path/filepath"
	"testing"

	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/order"
)

func sf(abs string, kind domain.Kind) domain.SourceFile {
	return domain.SourceFile{
		AbsPath: abs,
		RelPath: abs,
		Name:    filepath.Base(abs),
		Ext:     filepath.Ext(abs),
		Kind:    kind,
		Series:  filepath.Base(filepath.Dir(abs)),
	}
}

func TestGroupSources_ByLeadingNumber(t *testing.T) {
	files := []domain.SourceFile{
		sf("/lib/series/Vol10.epub", domain.KindDocument),
		sf("/lib/series/Vol2.epub", domain.KindDocument),
		sf("/lib/series/第一巻.epub", domain.KindDocument),
		sf("/lib/series/extra.srt", domain.KindSubtitle),
	}

	got := GroupSources(files, order.ByNumber)
	want := []string{"第一巻.epub", "Vol2.epub", "Vol10.epub", "extra.srt"}
	if len(got) != len(want) {
		t.Fatalf("来源数量不一致：got=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("顺序不一致 [%d]：got=%q want=%q", i, got[i].Name, want[i])
		}
		if len(got[i].FileIdx) != 1 {
			t.Fatalf("文档/字幕应一文件一来源：%+v", got[i])
		}
	}
}

func TestGroupSources_TextFilesMergedPerFolder(t *testing.T) {
	files := []domain.SourceFile{
		sf("/lib/novel/ch10.txt", domain.KindText),
		sf("/lib/novel/ch2.txt", domain.KindText),
		sf("/lib/novel/ch1.txt", domain.KindText),
		sf("/lib/essay/a.txt", domain.KindText),
	}

	got := GroupSources(files, order.ByNatural)
	if len(got) != 2 {
		t.Fatalf("期望 2 个来源，实际=%d", len(got))
	}
	if got[0].Name != "essay" || got[1].Name != "novel" {
		t.Fatalf("来源顺序不一致：%q %q", got[0].Name, got[1].Name)
	}

	novel := got[1]
	if novel.Kind != domain.KindText || novel.Series != "novel" {
		t.Fatalf("novel 来源不一致：%+v", novel)
	}
	var names []string
	for _, i := range novel.FileIdx {
		names = append(names, files[i].Name)
	}
	want := []string{"ch1.txt", "ch2.txt", "ch10.txt"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("组内顺序不一致：got=%v want=%v", names, want)
		}
	}
}

func TestGroupSources_Empty(t *testing.T) {
	if got := GroupSources(nil, order.ByNumber); len(got) != 0 {
		t.Fatalf("期望空结果，实际=%v", got)
	}
}
