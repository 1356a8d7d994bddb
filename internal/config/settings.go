package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	// SettingsFile 是持久化设置的文件名。
	SettingsFile = "settings.json"
	// HomeEnv 覆盖设置目录（默认 <UserConfigDir>/kanjiscan）。
	HomeEnv = "KANJISCAN_HOME"

	// DefaultAnkiTimeoutSec 是未配置 anki_timeout_sec 时的超时秒数。
	DefaultAnkiTimeoutSec = 30

	timeoutKey = "anki_timeout_sec"
	timeoutEnv = "KANJISCAN_ANKI_TIMEOUT_SEC"
)

// Settings 对应 settings.json；同时支持环境变量覆盖与内置默认。
// 优先级：环境变量 > settings.json > env-default。
//
// anki_timeout_sec 的 0 表示不设超时，不能用 env-default（cleanenv 会把零值替换成默认），
// 只在文件与环境变量都没给出该键时才补 DefaultAnkiTimeoutSec。
type Settings struct {
	Deck           string   `json:"deck"             env:"KANJISCAN_DECK"             env-default:"Mining"`
	Fields         []string `json:"fields"           env:"KANJISCAN_FIELDS"           env-default:"Word"`
	AnkiURL        string   `json:"anki_url"         env:"KANJISCAN_ANKI_URL"         env-default:"http://127.0.0.1:8765"`
	AnkiTimeoutSec int      `json:"anki_timeout_sec" env:"KANJISCAN_ANKI_TIMEOUT_SEC"`
	ExcludeDirs    []string `json:"exclude_dirs"     env:"KANJISCAN_EXCLUDE_DIRS"`
	Layout         string   `json:"layout"           env:"KANJISCAN_LAYOUT"           env-default:"lines"`
	Order          string   `json:"order"            env:"KANJISCAN_ORDER"            env-default:"number"`
	LogLevel       string   `json:"log_level"        env:"KANJISCAN_LOG_LEVEL"        env-default:"warn"`
	LogFormat      string   `json:"log_format"       env:"KANJISCAN_LOG_FORMAT"       env-default:"text"`
}

// SettingsDir 返回设置目录：$KANJISCAN_HOME，否则 <UserConfigDir>/kanjiscan。
// 两者都不可用时退化到 cwd 下的 .kanjiscan。
func SettingsDir() string {
	if d := strings.TrimSpace(os.Getenv(HomeEnv)); d != "" {
		return filepath.Clean(d)
	}
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, "kanjiscan")
	}
	return ".kanjiscan"
}

// LoadSettings 读取 path（settings.json）。
//
// 规则：
// - 文件不存在或损坏：退回到“环境变量 + 内置默认”，并把读取错误作为第二个返回值交给调用方记录
// - 不会因为设置文件问题让运行失败
func LoadSettings(path string) (Settings, error) {
	var s Settings
	var fileErr error
	_, err := os.Stat(path)
	switch {
	case err == nil:
		if fileErr = cleanenv.ReadConfig(path, &s); fileErr == nil {
			if !fileHasKey(path, timeoutKey) {
				applyTimeoutDefault(&s)
			}
			return s, nil
		}
	case !os.IsNotExist(err):
		fileErr = err
	}

	s = Settings{}
	if err := cleanenv.ReadEnv(&s); err != nil {
		// 环境变量格式错误：只保留内置默认。
		return Defaults(), err
	}
	applyTimeoutDefault(&s)
	return s, fileErr
}

// applyTimeoutDefault 在环境变量也未设置时补默认超时。
func applyTimeoutDefault(s *Settings) {
	if _, ok := os.LookupEnv(timeoutEnv); ok {
		return
	}
	s.AnkiTimeoutSec = DefaultAnkiTimeoutSec
}

func fileHasKey(path, key string) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}

// Defaults 返回内置默认设置（不读环境变量）。
func Defaults() Settings {
	return Settings{
		Deck:           "Mining",
		Fields:         []string{"Word"},
		AnkiURL:        "http://127.0.0.1:8765",
		AnkiTimeoutSec: DefaultAnkiTimeoutSec,
		Layout:         LayoutLines,
		Order:          OrderNumber,
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}
