package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/kanjiscan/internal/infra/fsx"
)

// Store 管理设置目录下的 settings.json（上一次运行使用的 deck/fields）。
//
// 约束：
// - --no-save：只允许读（ReadOnly=true）
// - 写入采用原子替换；未知键原样保留
type Store struct {
	Dir      string
	Name     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(dir, name string, readOnly bool) Store {
	return Store{
		Dir:      filepath.Clean(strings.TrimSpace(dir)),
		Name:     name,
		ReadOnly: readOnly,
	}
}

// Path 返回设置文件的绝对路径。
func (s Store) Path() string {
	return filepath.Join(s.Dir, s.Name)
}

// Read 读取原始 JSON 对象；文件不存在时返回 (nil, false, nil)。
func (s Store) Read() (map[string]json.RawMessage, bool, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, true, fmt.Errorf("解析 %s 失败：%w", s.Path(), err)
	}
	return m, true, nil
}

// SaveRun 把本次运行的 deck/fields 写回设置文件。
//
// 规则：
// - 已有文件损坏时直接以新对象覆盖（损坏的设置本来就不会被读取）
// - 其它键（anki_url、exclude_dirs 等）保持不变
func (s Store) SaveRun(deck string, fields []string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	if strings.TrimSpace(deck) == "" {
		return fmt.Errorf("deck 不能为空")
	}
	m, _, err := s.Read()
	if err != nil && !isDecodeErr(err) {
		return err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	if fields == nil {
		fields = []string{}
	}
	if err := put(m, "deck", deck); err != nil {
		return err
	}
	if err := put(m, "fields", fields); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(s.Dir, s.Name, append(b, '\n'))
}

func put(m map[string]json.RawMessage, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m[key] = b
	return nil
}

func isDecodeErr(err error) bool {
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	return errors.As(err, &se) || errors.As(err, &te)
}
