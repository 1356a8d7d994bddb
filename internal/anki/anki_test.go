package anki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Action  string          `json:"action"`
	Version int             `json:"version"`
	Params  json.RawMessage `json:"params"`
}

func newServer(t *testing.T, handle func(c call) (result any, errMsg *string)) (*httptest.Server, *[]call) {
	t.Helper()
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c call
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			t.Errorf("请求体不是合法 JSON：%v", err)
			return
		}
		calls = append(calls, c)
		res, e := handle(c)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": res, "error": e})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_FindNotesAndNotesInfo(t *testing.T) {
	srv, calls := newServer(t, func(c call) (any, *string) {
		switch c.Action {
		case "findNotes":
			return []int64{1, 2}, nil
		case "notesInfo":
			return []map[string]any{
				{"noteId": 1, "fields": map[string]any{"Word": map[string]any{"value": "今日", "order": 0}}},
				{"noteId": 2, "fields": map[string]any{"Word": map[string]any{"value": "天気", "order": 0}}},
			}, nil
		}
		return nil, nil
	})
	c := New(srv.URL, srv.Client(), nil)

	ids, err := c.FindNotes(context.Background(), DeckQuery("Mining"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	notes, err := c.NotesInfo(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "天気", notes[1].Fields["Word"].Value)

	require.Len(t, *calls, 2)
	first := (*calls)[0]
	assert.Equal(t, 6, first.Version)
	assert.JSONEq(t, `{"query":"deck:\"Mining\""}`, string(first.Params))
}

func TestClient_APIError(t *testing.T) {
	msg := "collection is not available"
	srv, _ := newServer(t, func(c call) (any, *string) { return nil, &msg })
	c := New(srv.URL, srv.Client(), nil)

	_, err := c.FindNotes(context.Background(), "deck:x")
	var ae *APIError
	require.True(t, errors.As(err, &ae), "期望 APIError，实际 %v", err)
	assert.Equal(t, msg, ae.Message)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, StageAPI, e.Stage)
	assert.Equal(t, "findNotes", e.Action)
}

func TestClient_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), nil).FindNotes(context.Background(), "deck:x")
	var he *HTTPStatusError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusForbidden, he.StatusCode)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil, nil).FindNotes(context.Background(), "deck:x")
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, StageRequest, e.Stage)
}

func TestClient_NotesInfoBatches(t *testing.T) {
	var batches []int
	srv, _ := newServer(t, func(c call) (any, *string) {
		var p struct {
			Notes []int64 `json:"notes"`
		}
		_ = json.Unmarshal(c.Params, &p)
		batches = append(batches, len(p.Notes))
		out := make([]map[string]any, 0, len(p.Notes))
		for _, id := range p.Notes {
			out = append(out, map[string]any{"noteId": id, "fields": map[string]any{}})
		}
		return out, nil
	})

	ids := make([]int64, notesInfoBatch+5)
	for i := range ids {
		ids[i] = int64(i)
	}
	notes, err := New(srv.URL, srv.Client(), nil).NotesInfo(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, notes, len(ids))
	assert.Equal(t, []int{notesInfoBatch, 5}, batches)
	assert.Equal(t, int64(notesInfoBatch), notes[notesInfoBatch].NoteID)
}

func TestDeckQuery_Escape(t *testing.T) {
	assert.Equal(t, `deck:"My \"Deck\""`, DeckQuery(`My "Deck"`))
}
