package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/kanjiscan/internal/anki"
	"github.com/John-Robertt/kanjiscan/internal/app"
	"github.com/John-Robertt/kanjiscan/internal/app/run"
	"github.com/John-Robertt/kanjiscan/internal/config"
	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/export"
	"github.com/John-Robertt/kanjiscan/internal/infra/cache"
	"github.com/John-Robertt/kanjiscan/internal/infra/httpx"
	"github.com/John-Robertt/kanjiscan/internal/known"
	"github.com/John-Robertt/kanjiscan/internal/source"
	"github.com/John-Robertt/kanjiscan/internal/source/epub"
	"github.com/John-Robertt/kanjiscan/internal/source/plaintext"
	"github.com/John-Robertt/kanjiscan/internal/source/subtitle"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:], os.Stdout, os.Stderr); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage(os.Stderr)
		os.Exit(2)
	}
}

func runCmd(args []string, stdout, stderr io.Writer) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage(stdout)
			return 0
		}
	}

	cli, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		printRunUsage(stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	store := cache.New(config.SettingsDir(), config.SettingsFile, cli.NoSave)
	settings, settingsErr := config.LoadSettings(store.Path())

	tty := isTTY(stdout)
	eff, err := config.Resolve(cwd, cli, settings)
	if err != nil {
		emitReport(stdout, stderr, tty, reportForConfigError(cwd, cli, err))
		return 1
	}

	logger := app.NewLogger(app.LogConfig{Level: eff.LogLevel, Format: eff.LogFormat})
	if settingsErr != nil {
		logger.Debug("设置文件不可用，使用默认值",
			slog.String("path", store.Path()),
			slog.Any("err", settingsErr),
		)
	}

	reg, err := source.NewRegistry(epub.New(), subtitle.New(), plaintext.New())
	if err != nil {
		fmt.Fprintf(stderr, "初始化提取器失败：%v\n", err)
		return 1
	}

	client := anki.New(eff.AnkiURL, httpx.NewClient(eff.AnkiTimeout, logger), logger)
	deps := run.Deps{
		Registry:  reg,
		Known:     known.NewResolver(client, logger),
		Cache:     known.NewCache(),
		Exporter:  export.Writer{Dir: eff.OutDir, Mode: eff.Export, Layout: eff.Layout, Logger: logger.With("comp", "export")},
		Clipboard: export.SystemClipboard{},
		Logger:    logger,
	}

	// 人类可读输出：stdout 是终端时写 stdout，否则写 stderr（stdout 只留给 JSON）。
	human := stderr
	if tty {
		human = stdout
	}
	ui := newConsoleUI(human, eff.ShowPositions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rr := run.ExecuteWithObserver(ctx, eff, deps, ui)
	ui.Close()

	if err := store.SaveRun(eff.Deck, eff.Fields); err != nil && !errors.Is(err, cache.ErrReadOnly) {
		logger.Warn("保存设置失败", slog.String("path", store.Path()), slog.Any("err", err))
	}

	emitReport(stdout, stderr, tty, rr)
	if rr.Aborted {
		return 1
	}
	return 0
}

// parseRunArgs 解析 `run` 的参数：支持 --flag value 与 --flag=value；布尔参数支持 --flag=true|false。
//
// 约束：
// - 只有 --field 可以重复；其它参数重复视为错误
// - target 是唯一的位置参数
func parseRunArgs(args []string) (config.CLIArgs, error) {
	var cli config.CLIArgs
	seen := map[string]struct{}{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			if cli.Target != "" {
				return config.CLIArgs{}, fmt.Errorf("重复的 target：%q 与 %q", cli.Target, a)
			}
			cli.Target = a
			continue
		}

		name, val, hasVal := strings.Cut(a, "=")
		if name != "--field" {
			if _, dup := seen[name]; dup {
				return config.CLIArgs{}, fmt.Errorf("重复的参数 %s", name)
			}
			seen[name] = struct{}{}
		}

		if target := boolFlag(&cli, name); target != nil {
			v := true
			if hasVal {
				switch val {
				case "true":
				case "false":
					v = false
				default:
					return config.CLIArgs{}, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, val)
				}
			}
			*target = v
			continue
		}

		set := valueFlag(&cli, name)
		if set == nil {
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		if !hasVal {
			if i+1 >= len(args) {
				return config.CLIArgs{}, fmt.Errorf("%s 需要一个值", name)
			}
			i++
			val = args[i]
		}
		if strings.TrimSpace(val) == "" {
			return config.CLIArgs{}, fmt.Errorf("%s 不能为空", name)
		}
		set(val)
	}
	return cli, nil
}

func boolFlag(cli *config.CLIArgs, name string) *bool {
	switch name {
	case "--show-positions":
		return &cli.ShowPositions
	case "--sentences":
		return &cli.Sentences
	case "--clipboard":
		return &cli.Clipboard
	case "--no-save":
		return &cli.NoSave
	}
	return nil
}

func valueFlag(cli *config.CLIArgs, name string) func(string) {
	switch name {
	case "--deck":
		return func(v string) { cli.Deck, cli.DeckSet = v, true }
	case "--field":
		return func(v string) { cli.Fields, cli.FieldsSet = append(cli.Fields, v), true }
	case "--export":
		return func(v string) { cli.Export, cli.ExportSet = v, true }
	case "--layout":
		return func(v string) { cli.Layout, cli.LayoutSet = v, true }
	case "--order":
		return func(v string) { cli.Order, cli.OrderSet = v, true }
	case "--out":
		return func(v string) { cli.OutDir = v }
	case "--anki-url":
		return func(v string) { cli.AnkiURL, cli.AnkiURLSet = v, true }
	case "--log-level":
		return func(v string) { cli.LogLevel, cli.LogLevelSet = v, true }
	case "--log-format":
		return func(v string) { cli.LogFormat, cli.LogFormatSet = v, true }
	}
	return nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  kanjiscan run <target> [参数]

命令：
  run    扫描 EPUB/字幕/文本，找出 Anki deck 中还没有的汉字

使用 "kanjiscan run --help" 查看详细说明。
`)
}

func printRunUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  kanjiscan run <target> [参数]

参数：
  --deck NAME            Anki deck（默认读取上次运行的设置；最终默认 Mining）
  --field NAME           参与比对的字段，可重复或逗号分隔（默认 Word）
  --show-positions       打印每个未知汉字的前 10 个位置/时间戳
  --export MODE          none|file|series（默认 none）
  --layout LAYOUT        lines|inline：每行一个汉字或整行拼接（默认 lines）
  --sentences            为每个未知汉字导出首个例句
  --clipboard            把全部未知汉字复制到剪贴板（与 --export 互斥）
  --order ORDER          number|natural：文件排序方式（默认 number）
  --out DIR              导出目录（默认当前目录）
  --anki-url URL         AnkiConnect 地址（默认 http://127.0.0.1:8765）
  --no-save              不把 deck/fields 写回设置文件
  --log-level LEVEL      debug|info|warn|error（默认 warn）
  --log-format FORMAT    text|json（默认 text）
  -h, --help             显示帮助

设置文件：$KANJISCAN_HOME/settings.json（默认位于用户配置目录下的 kanjiscan/）
`)
}

// emitReport 输出最终结果。
//
// - stdout 是终端：打印人类可读的总结，失败条目写 stderr
// - stdout 非终端：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）
func emitReport(stdout, stderr io.Writer, tty bool, rr domain.RunReport) {
	if tty {
		if !rr.Aborted {
			fmt.Fprintf(stdout, "\nTotal unknown kanji found: %d\n", rr.Summary.TotalUnknown)
		}
		for _, p := range rr.Artifacts {
			fmt.Fprintf(stdout, "export: %s\n", p)
		}
		if rr.Clipboard {
			fmt.Fprintln(stdout, "Kanji copied to clipboard.")
		}
		if rr.ExportError != "" {
			fmt.Fprintf(stderr, "%s\n", rr.ExportError)
		}
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.Name
			if key == "" {
				key = "<run>"
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(stderr, "Done: processed=%d failed=%d total_unknown=%d aborted=%t\n",
		rr.Summary.Processed, rr.Summary.Failed, rr.Summary.TotalUnknown, rr.Aborted,
	)
}

func reportForConfigError(cwd string, cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	target := strings.TrimSpace(cli.Target)
	if target != "" && !filepath.IsAbs(target) {
		target = filepath.Join(cwd, target)
	}
	rr := domain.RunReport{
		Target:     target,
		Deck:       cli.Deck,
		Fields:     cli.Fields,
		StartedAt:  now,
		FinishedAt: now,
		Aborted:    true,
		Items: []domain.SourceResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Files:     []string{},
			Unknown:   []domain.UnknownKanji{},
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
