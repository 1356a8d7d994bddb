package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/kanjiscan/internal/app/run"
	"github.com/John-Robertt/kanjiscan/internal/config"
	"github.com/John-Robertt/kanjiscan/internal/domain"
)

var _ run.Observer = (*consoleUI)(nil)

// consoleUI 把运行事件渲染成人类可读的输出。
//
// - 只写 w（stdout 为终端时是 stdout，否则是 stderr），不影响 stdout 的 JSON 契约
// - 来源处理期间长时间无输出时，定期打印一行进度
type consoleUI struct {
	w             io.Writer
	showPositions bool

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	fail  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newConsoleUI(w io.Writer, showPositions bool) *consoleUI {
	return &consoleUI{
		w:                  w,
		showPositions:      showPositions,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (c *consoleUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		c.startedAt = now
	}

	fmt.Fprintf(c.w, "[%s] kanjiscan run\n", now.Format("15:04:05"))
	fmt.Fprintln(c.w, "Effective config:")
	fmt.Fprintf(c.w, "  target: %s\n", eff.Target)
	fmt.Fprintf(c.w, "  deck: %s  fields: %s\n", eff.Deck, formatStringListJSON(eff.Fields))
	fmt.Fprintf(c.w, "  anki: %s\n", truncate(eff.AnkiURL, 120))
	fmt.Fprintf(c.w, "  order: %s\n", eff.Order)
	fmt.Fprintf(c.w, "  export: %s (layout=%s sentences=%s clipboard=%s)\n",
		eff.Export, eff.Layout, onOff(eff.Sentences), onOff(eff.Clipboard),
	)
	if eff.Export != config.ExportNone || eff.Sentences {
		fmt.Fprintf(c.w, "  out: %s\n", eff.OutDir)
	}
	fmt.Fprintf(c.w, "  exclude_dirs: %s (+ unknown_kanji_* always)\n", formatStringListJSON(eff.ExcludeDirs))
	fmt.Fprintln(c.w)

	c.lastPrinted = time.Now()
}

func (c *consoleUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(c.w, "Files found: %d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "group":
		c.total = intField(fields, "sources")
		fmt.Fprintf(c.w, "Sources: %d (%s)\n", c.total, formatShortDuration(dur))
	case "known":
		fmt.Fprintf(c.w, "Total kanji in Anki: %d (%s)\n", intField(fields, "kanji"), formatShortDuration(dur))
		if c.total > 0 && !c.tickerStarted {
			c.startTickerLocked()
		}
	case "export":
		clip := false
		if v, ok := fields["clipboard"].(bool); ok {
			clip = v
		}
		fmt.Fprintf(c.w, "Export: artifacts=%d clipboard=%s (%s)\n",
			intField(fields, "artifacts"), onOff(clip), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(c.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
	c.lastPrinted = time.Now()
}

func (c *consoleUI) OnSourceDone(idx, total int, res domain.SourceResult, dur time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done = idx
	c.total = total

	if res.Status == domain.StatusFailed {
		c.fail++
		fmt.Fprintf(c.w, "\n[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, res.Name, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	} else {
		fmt.Fprintf(c.w, "\n%s: Unique %d, not in Anki %d\n", res.Name, res.Unique, len(res.Unknown))
		if c.showPositions {
			for _, u := range res.Unknown {
				fmt.Fprintf(c.w, "Kanji: %s, Positions/Timestamps: %s\n", u.Kanji, u.Positions)
			}
		}
	}
	c.lastPrinted = time.Now()

	if c.tickerStarted && c.done >= c.total {
		c.stopTickerLocked()
	}
}

// Close 停止 keepalive（运行中止时可能没有最后一个来源事件）。
func (c *consoleUI) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tickerStarted {
		c.stopTickerLocked()
	}
}

func (c *consoleUI) stopTickerLocked() {
	close(c.stopCh)
	c.tickerStarted = false
}

func (c *consoleUI) startTickerLocked() {
	c.stopCh = make(chan struct{})
	c.tickerStarted = true
	stop := c.stopCh

	interval := c.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := c.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				c.mu.Lock()
				if c.total > 0 && time.Since(c.lastPrinted) > threshold {
					fmt.Fprintf(c.w, "Progress: done=%d/%d fail=%d elapsed=%s\n",
						c.done, c.total, c.fail, formatElapsed(time.Since(c.startedAt)),
					)
					c.lastPrinted = time.Now()
				}
				c.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// truncate 按字符截断（不会切坏多字节字符）。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
