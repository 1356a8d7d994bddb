// Package known 构建“已掌握汉字”集合：deck 中指定字段里出现过的所有汉字。
package known

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/John-Robertt/kanjiscan/internal/anki"
	"github.com/John-Robertt/kanjiscan/internal/kanji"
)

// ErrNoNotes 表示 deck 中没有任何 note。
// 与“有 note 但字段里没有汉字”（返回空集合、nil error）严格区分。
var ErrNoNotes = errors.New("known: no notes found")

// Notes 是 note 查询协作者（AnkiConnect 客户端实现它）。
type Notes interface {
	FindNotes(ctx context.Context, query string) ([]int64, error)
	NotesInfo(ctx context.Context, ids []int64) ([]anki.NoteInfo, error)
}

// Resolver 按 (deck, fields) 查询 note 并汇总其中的汉字。
type Resolver struct {
	notes Notes
	log   *slog.Logger
}

func NewResolver(notes Notes, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{notes: notes, log: logger.With("comp", "known")}
}

// Resolve 返回 deck 中 fields 字段文本里出现的所有汉字。
//
// 规则：
// - 没有 note：返回 ErrNoNotes（已包装 deck 名）
// - note 缺少某个字段：跳过该字段，不报错
// - 字段文本先过 FilterJapanese，再用 IsKanji 判定（与来源侧口径一致）
func (r *Resolver) Resolve(ctx context.Context, deck string, fields []string) (kanji.Set, error) {
	ids, err := r.notes.FindNotes(ctx, anki.DeckQuery(deck))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w：deck=%q", ErrNoNotes, deck)
	}

	notes, err := r.notes.NotesInfo(ctx, ids)
	if err != nil {
		return nil, err
	}

	set := kanji.Set{}
	missing := 0
	for _, n := range notes {
		for _, f := range fields {
			v, ok := n.Fields[f]
			if !ok {
				missing++
				continue
			}
			set.AddText(v.Value)
		}
	}
	r.log.DebugContext(ctx, "known set resolved",
		slog.String("deck", deck),
		slog.String("fields", strings.Join(fields, ",")),
		slog.Int("notes", len(notes)),
		slog.Int("missing_fields", missing),
		slog.Int("kanji", len(set)),
	)
	return set, nil
}

// SetResolver 是 Cache 的被缓存对象。
type SetResolver interface {
	Resolve(ctx context.Context, deck string, fields []string) (kanji.Set, error)
}

// Cache 是一次运行内的 known set 缓存，由运行驱动持有。
//
// 约束：
// - key = (deck, fields 元组)，fields 顺序敏感
// - 只缓存成功结果；失败不缓存
// - 非并发安全（运行本身是单线程顺序执行）
type Cache struct {
	sets map[string]kanji.Set
}

func NewCache() *Cache { return &Cache{sets: map[string]kanji.Set{}} }

func cacheKey(deck string, fields []string) string {
	return deck + "\x00" + strings.Join(fields, "\x1f")
}

// Get 查询缓存。
func (c *Cache) Get(deck string, fields []string) (kanji.Set, bool) {
	s, ok := c.sets[cacheKey(deck, fields)]
	return s, ok
}

// Put 写入缓存。
func (c *Cache) Put(deck string, fields []string, s kanji.Set) {
	c.sets[cacheKey(deck, fields)] = s
}

// Resolve 先查缓存，未命中再调用 r 并缓存成功结果。
func (c *Cache) Resolve(ctx context.Context, r SetResolver, deck string, fields []string) (kanji.Set, error) {
	if s, ok := c.Get(deck, fields); ok {
		return s, nil
	}
	s, err := r.Resolve(ctx, deck, fields)
	if err != nil {
		return nil, err
	}
	c.Put(deck, fields, s)
	return s, nil
}
