// Package anki 是 AnkiConnect 的最小客户端（findNotes / notesInfo）。
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// DefaultURL 是 AnkiConnect 的默认监听地址。
	DefaultURL = "http://127.0.0.1:8765"
	// APIVersion 是请求体中的 version 字段。
	APIVersion = 6

	// notesInfoBatch 限制单次 notesInfo 的 note 数量，避免超大 deck 产生巨型请求体。
	notesInfoBatch = 1000
)

const (
	StageRequest = "request"
	StageStatus  = "status"
	StageDecode  = "decode"
	StageAPI     = "api"
)

// Client 通过 HTTP POST 调用 AnkiConnect。
//
// 约束：
// - 地址只来自构造参数，不读取任何全局状态
// - 不做重试（一次失败即返回）
type Client struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

func New(url string, hc *http.Client, logger *slog.Logger) *Client {
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{url: url, http: hc, log: logger.With("comp", "anki")}
}

// URL 返回 AnkiConnect 地址。
func (c *Client) URL() string { return c.url }

// NoteField 是 notesInfo 返回的单个字段。
type NoteField struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// NoteInfo 是 notesInfo 返回的单条 note（只取需要的字段）。
type NoteInfo struct {
	NoteID int64                `json:"noteId"`
	Fields map[string]NoteField `json:"fields"`
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// Invoke 调用一个 AnkiConnect action，并把 result 解码到 out（out 可为 nil）。
func (c *Client) Invoke(ctx context.Context, action string, params any, out any) error {
	body, err := json.Marshal(request{Action: action, Version: APIVersion, Params: params})
	if err != nil {
		return &Error{Action: action, Stage: StageRequest, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &Error{Action: action, Stage: StageRequest, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.DebugContext(ctx, "anki request", slog.String("action", action))

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Action: action, Stage: StageRequest, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &Error{Action: action, Stage: StageStatus, Err: &HTTPStatusError{URL: c.url, StatusCode: resp.StatusCode}}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return &Error{Action: action, Stage: StageDecode, Err: err}
	}
	if r.Error != nil {
		return &Error{Action: action, Stage: StageAPI, Err: &APIError{Message: *r.Error}}
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return &Error{Action: action, Stage: StageDecode, Err: err}
	}
	return nil
}

// DeckQuery 构造按 deck 名精确匹配的搜索语句：deck:"name"。
func DeckQuery(deck string) string {
	return `deck:"` + strings.ReplaceAll(deck, `"`, `\"`) + `"`
}

// FindNotes 返回匹配 query 的 note id 列表。
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	if err := c.Invoke(ctx, "findNotes", map[string]any{"query": query}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// NotesInfo 返回 ids 对应的 note 字段（按批请求，保持 ids 顺序）。
func (c *Client) NotesInfo(ctx context.Context, ids []int64) ([]NoteInfo, error) {
	out := make([]NoteInfo, 0, len(ids))
	for start := 0; start < len(ids); start += notesInfoBatch {
		end := start + notesInfoBatch
		if end > len(ids) {
			end = len(ids)
		}
		var batch []NoteInfo
		if err := c.Invoke(ctx, "notesInfo", map[string]any{"notes": ids[start:end]}, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	c.log.DebugContext(ctx, "anki notes fetched", slog.Int("notes", len(out)))
	return out, nil
}

// Error 是一次 AnkiConnect 调用的可追溯错误。
type Error struct {
	Action string
	Stage  string // request / status / decode / api
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("anki action=%s stage=%s: %v", e.Action, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusError 表示 AnkiConnect 返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d (%s)", e.StatusCode, e.URL)
}

// APIError 表示响应体中 error 字段非空。
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "anki: " + e.Message }
