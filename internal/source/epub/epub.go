// Package epub 从 EPUB 容器中提取正文文本（去除 ruby 注音）。
package epub

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	gepub "github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/source"
)

// Extractor 实现 source.Extractor（KindDocument）。
type Extractor struct {
	// ReadFunc 可替换，默认 source.ReadFile。
	ReadFunc func(path string) ([]byte, error)
}

func New() *Extractor { return &Extractor{ReadFunc: source.ReadFile} }

func (x *Extractor) Kind() domain.Kind { return domain.KindDocument }

func (x *Extractor) Read(path string) ([]byte, error) {
	if x.ReadFunc == nil {
		return source.ReadFile(path)
	}
	return x.ReadFunc(path)
}

var errNoRootfile = errors.New("epub: 缺少 rootfile")

// Parse 按 manifest 顺序拼接所有 XHTML 文档的正文。
//
// 规则：
// - 容器本身无法打开（非 zip、缺少 container.xml/OPF）：返回错误
// - 单个文档打开/解析失败：跳过该文档
// - <rt>/<rp> 在取文本前删除；块级元素之间插入换行，便于切句
func (x *Extractor) Parse(name string, data []byte) (source.Text, error) {
	r, err := gepub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return source.Text{}, err
	}
	if len(r.Rootfiles) == 0 {
		return source.Text{}, errNoRootfile
	}

	var b strings.Builder
	for _, rf := range r.Rootfiles {
		items := rf.Manifest.Items
		for i := range items {
			if !isDocument(items[i].MediaType) {
				continue
			}
			rc, err := items[i].Open()
			if err != nil {
				continue
			}
			text, err := BodyText(rc)
			_ = rc.Close()
			if err != nil {
				continue
			}
			b.WriteString(text)
		}
	}
	return source.Text{Body: b.String()}, nil
}

func isDocument(mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/xhtml+xml", "text/html":
		return true
	default:
		return false
	}
}

// BodyText 取出 (X)HTML 文档 <body> 内的可见文本（已去除 ruby 注音）。
func BodyText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("rt, rp, script, style").Remove()

	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	for _, n := range root.Nodes {
		writeText(&b, n)
	}
	return b.String(), nil
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode, html.DocumentNode:
	default:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		b.WriteByte('\n')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.Section, atom.Article,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Blockquote, atom.Body:
		return true
	default:
		return false
	}
}
