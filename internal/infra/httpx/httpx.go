package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultTimeout 是 AnkiConnect 请求的默认总超时。
	DefaultTimeout = 30 * time.Second

	defaultUserAgent = "kanjiscan"
)

// Transport 把“UA + 调试日志”固化为统一策略。
//
// 约束：
// - 不做重试：AnkiConnect 请求是 POST 且带 body，不可安全重放
// - 不走代理：AnkiConnect 通常监听本机回环地址，系统代理只会添乱
type Transport struct {
	Base http.RoundTripper

	UserAgent string
	Logger    *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		ua := t.UserAgent
		if ua == "" {
			ua = defaultUserAgent
		}
		r.Header.Set("User-Agent", ua)
	}

	start := time.Now()
	resp, err := t.Base.RoundTrip(r)
	if t.Logger != nil {
		attrs := []any{"method", r.Method, "url", r.URL.String(), "elapsed", time.Since(start)}
		if err != nil {
			t.Logger.Debug("http request failed", append(attrs, "error", err)...)
		} else {
			t.Logger.Debug("http request", append(attrs, "status", resp.StatusCode)...)
		}
	}
	return resp, err
}

// NewClient 构造访问 AnkiConnect 的 HTTP client。
//
// 规则：
// - timeout<=0：不设总超时（与“外部服务挂起则整个运行挂起”的行为一致，可由 ctx 取消）
// - logger 为 nil 时不打日志
func NewClient(timeout time.Duration, logger *slog.Logger) *http.Client {
	base := &http.Transport{
		Proxy:                 nil,
		MaxIdleConns:          2,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 0,
	}
	if timeout < 0 {
		timeout = 0
	}
	return &http.Client{
		Transport: &Transport{
			Base:      base,
			UserAgent: defaultUserAgent,
			Logger:    logger,
		},
		Timeout: timeout,
	}
}
