// Package plaintext 读取 .txt 文件；同组多个文件的拼接由 source.Extract 完成。
package plaintext

import (
	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/infra/textx"
	"github.com/John-Robertt/kanjiscan/internal/source"
)

// Extractor 实现 source.Extractor（KindText）。
type Extractor struct {
	ReadFunc func(path string) ([]byte, error)
}

func New() *Extractor { return &Extractor{ReadFunc: source.ReadFile} }

func (x *Extractor) Kind() domain.Kind { return domain.KindText }

func (x *Extractor) Read(path string) ([]byte, error) {
	if x.ReadFunc == nil {
		return source.ReadFile(path)
	}
	return x.ReadFunc(path)
}

// Parse 解码文本（BOM / Shift_JIS），没有锚点；偏移量在整组拼接后的文本上计算。
func (x *Extractor) Parse(name string, data []byte) (source.Text, error) {
	s, err := textx.Decode(data)
	if err != nil {
		return source.Text{}, err
	}
	return source.Text{Body: s}, nil
}
