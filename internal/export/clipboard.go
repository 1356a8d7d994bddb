package export

import (
	"errors"

	"github.com/atotto/clipboard"
)

// ErrClipboardUnsupported 表示当前系统没有可用的剪贴板工具（例如缺少 xclip/xsel）。
var ErrClipboardUnsupported = errors.New("export: clipboard unsupported")

// SystemClipboard 是基于系统剪贴板的 Sink。
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}
