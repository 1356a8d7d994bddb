package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_SaveRunCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kanjiscan")

	s := New(dir, "settings.json", false)
	if err := s.SaveRun("Mining", []string{"Word"}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	m, ok, err := s.Read()
	if err != nil || !ok {
		t.Fatalf("期望读取成功，ok=%v err=%v", ok, err)
	}
	if string(m["deck"]) != `"Mining"` {
		t.Fatalf("deck 不一致：%s", m["deck"])
	}
	var fields []string
	if err := json.Unmarshal(m["fields"], &fields); err != nil {
		t.Fatalf("fields 解析失败：%v", err)
	}
	if len(fields) != 1 || fields[0] != "Word" {
		t.Fatalf("fields 不一致：%v", fields)
	}
}

func TestStore_SaveRunKeepsOtherKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{"deck":"Old","anki_url":"http://localhost:9000"}`), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}

	s := New(dir, "settings.json", false)
	if err := s.SaveRun("Core", []string{"Expression", "Reading"}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读文件失败：%v", err)
	}
	var got struct {
		Deck    string   `json:"deck"`
		Fields  []string `json:"fields"`
		AnkiURL string   `json:"anki_url"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if got.Deck != "Core" || len(got.Fields) != 2 {
		t.Fatalf("deck/fields 未更新：%+v", got)
	}
	if got.AnkiURL != "http://localhost:9000" {
		t.Fatalf("期望保留 anki_url，实际=%q", got.AnkiURL)
	}
}

func TestStore_SaveRunOverwritesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{"deck":`), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}

	s := New(dir, "settings.json", false)
	if err := s.SaveRun("Mining", []string{"Word"}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, _, err := s.Read(); err != nil {
		t.Fatalf("期望文件已修复，实际：%v", err)
	}
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	dir := t.TempDir()

	s := New(dir, "settings.json", true)
	err := s.SaveRun("Mining", []string{"Word"})
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Fatalf("期望文件不存在，但 Stat err=%v", err)
	}
}
