package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ErrCodeNotFound 表示 target 路径不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示参数/设置不合法（枚举越界、互斥选项同时出现等）。
	ErrCodeInvalid = "config_invalid"
)

const (
	ExportNone   = "none"
	ExportFile   = "file"
	ExportSeries = "series"

	LayoutLines  = "lines"
	LayoutInline = "inline"

	OrderNumber  = "number"
	OrderNatural = "natural"
)

// CLIArgs 是 `kanjiscan run` 暴露的参数，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：CLI > settings.json/环境变量 > 内置默认。
type CLIArgs struct {
	Target string

	Deck    string
	DeckSet bool

	Fields    []string
	FieldsSet bool

	ShowPositions bool
	Sentences     bool
	Clipboard     bool
	NoSave        bool

	Export    string
	ExportSet bool

	Layout    string
	LayoutSet bool

	Order    string
	OrderSet bool

	OutDir string

	AnkiURL    string
	AnkiURLSet bool

	LogLevel    string
	LogLevelSet bool

	LogFormat    string
	LogFormatSet bool
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Target string // clean + absolute
	OutDir string // 导出目录（默认 cwd）

	Deck   string
	Fields []string

	ShowPositions bool
	Export        string // none|file|series
	Layout        string // lines|inline
	Sentences     bool
	Clipboard     bool
	Order         string // number|natural

	AnkiURL     string
	AnkiTimeout time.Duration
	ExcludeDirs []string

	LogLevel  string
	LogFormat string

	NoSave bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：目标路径不存在 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Resolve 把 CLI 参数与持久化设置合并为最终配置。
//
// 覆盖优先级（固定）：
// - deck/fields/export/layout/order/anki_url/log_*：CLI > settings（已含环境变量与 env-default）
// - exclude_dirs/anki_timeout_sec：仅由 settings 控制
// - target/out：相对路径以 cwd 为基准
//
// 校验：
// - target 必填且必须存在
// - fields 去空白后不能为空；deck 不能为空
// - export 与 clipboard 互斥（同时指定视为 config_invalid，而不是默默二选一）
func Resolve(cwd string, cli CLIArgs, s Settings) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Target) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("缺少 target（文件或目录）")}
	}
	target := absCleanFrom(cwdAbs, cli.Target)
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: target, Err: err}
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: target, Err: err}
	}

	outDir := cwdAbs
	if strings.TrimSpace(cli.OutDir) != "" {
		outDir = absCleanFrom(cwdAbs, cli.OutDir)
	}

	eff := EffectiveConfig{
		Target:        target,
		OutDir:        outDir,
		Deck:          pick(cli.DeckSet, cli.Deck, s.Deck),
		Fields:        normalizeFields(s.Fields),
		ShowPositions: cli.ShowPositions,
		Export:        strings.ToLower(pick(cli.ExportSet, cli.Export, ExportNone)),
		Layout:        strings.ToLower(pick(cli.LayoutSet, cli.Layout, s.Layout)),
		Sentences:     cli.Sentences,
		Clipboard:     cli.Clipboard,
		Order:         strings.ToLower(pick(cli.OrderSet, cli.Order, s.Order)),
		AnkiURL:       pick(cli.AnkiURLSet, cli.AnkiURL, s.AnkiURL),
		AnkiTimeout:   time.Duration(s.AnkiTimeoutSec) * time.Second,
		ExcludeDirs:   append([]string(nil), s.ExcludeDirs...),
		LogLevel:      strings.ToLower(pick(cli.LogLevelSet, cli.LogLevel, s.LogLevel)),
		LogFormat:     strings.ToLower(pick(cli.LogFormatSet, cli.LogFormat, s.LogFormat)),
		NoSave:        cli.NoSave,
	}
	if cli.FieldsSet {
		eff.Fields = normalizeFields(cli.Fields)
	}
	if eff.Layout == "" {
		eff.Layout = LayoutLines
	}
	if eff.Order == "" {
		eff.Order = OrderNumber
	}

	if err := validate(eff); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: target, Err: err}
	}
	return eff, nil
}

func validate(eff EffectiveConfig) error {
	if strings.TrimSpace(eff.Deck) == "" {
		return fmt.Errorf("deck 不能为空")
	}
	if len(eff.Fields) == 0 {
		return fmt.Errorf("fields 不能为空")
	}
	if err := oneOf("export", eff.Export, ExportNone, ExportFile, ExportSeries); err != nil {
		return err
	}
	if err := oneOf("layout", eff.Layout, LayoutLines, LayoutInline); err != nil {
		return err
	}
	if err := oneOf("order", eff.Order, OrderNumber, OrderNatural); err != nil {
		return err
	}
	if eff.Export != ExportNone && eff.Clipboard {
		return fmt.Errorf("--export 与 --clipboard 互斥，只能指定其一")
	}
	u, err := url.Parse(strings.TrimSpace(eff.AnkiURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("anki_url 必须是 http/https 地址：%q", eff.AnkiURL)
	}
	if eff.AnkiTimeout < 0 {
		return fmt.Errorf("anki_timeout_sec 不能为负数")
	}
	return nil
}

func oneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s 只能是 %s，实际是 %q", name, strings.Join(allowed, "|"), v)
}

func pick(set bool, cliValue, fallback string) string {
	if set {
		return strings.TrimSpace(cliValue)
	}
	return strings.TrimSpace(fallback)
}

// normalizeFields 支持 "Word,Reading" 与多次 --field；去空白、去重、保持顺序。
func normalizeFields(in []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, raw := range in {
		for _, f := range strings.Split(raw, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
