package subtitle

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/kanjiscan/internal/kanji"
)

// 开始时间：H:MM:SS,mmm 或 H:MM:SS.mmm（小时位数不限，毫秒 1~3 位）。
var arrowStartRE = regexp.MustCompile(`^\s*(\d+):(\d{1,2}):(\d{1,2})(?:[,.](\d{1,3}))?\s*-->`)

// ParseArrow 以纯文本约定解析字幕："-->" 所在行是时间行，其后的非空行属于该 cue。
//
// 规则：
// - 时间行之前的纯数字行（序号）与空行被忽略
// - cue 在空行或下一条时间行处结束；多行文本用 "\n" 连接
// - 出现在任何时间行之前的文本被忽略
// - 没有任何时间行：返回错误
func ParseArrow(s string) ([]kanji.Cue, error) {
	var (
		cues    []kanji.Cue
		cur     *kanji.Cue
		lines   []string
		sawTime bool
	)
	flush := func() {
		if cur != nil && len(lines) > 0 {
			cur.Text = strings.Join(lines, "\n")
			cues = append(cues, *cur)
		}
		cur, lines = nil, nil
	}

	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.Contains(line, "-->") {
			flush()
			start, err := parseArrowStart(line)
			if err != nil {
				return nil, err
			}
			cur = &kanji.Cue{Start: start}
			sawTime = true
			continue
		}
		if line == "" {
			flush()
			continue
		}
		if cur == nil {
			// 序号行或时间行之前的杂项。
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()

	if !sawTime {
		return nil, fmt.Errorf("subtitle: 未找到 \"-->\" 时间行")
	}
	return cues, nil
}

func parseArrowStart(line string) (time.Duration, error) {
	m := arrowStartRE.FindStringSubmatch(line)
	if m == nil {
		return 0, fmt.Errorf("subtitle: 无效时间行：%q", line)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	ms := 0
	if m[4] != "" {
		// "5" 表示 500ms，"05" 表示 50ms。
		frac := m[4] + strings.Repeat("0", 3-len(m[4]))
		ms, _ = strconv.Atoi(frac)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
