package run

import (
	"time"

	"github.com/John-Robertt/kanjiscan/internal/config"
	"github.com/John-Robertt/kanjiscan/internal/domain"
)

// Observer 用于把“运行进度/阶段/来源结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件在调用 ExecuteWithObserver 的 goroutine 上按顺序发出。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（scan/group/known/export）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnSourceDone 在某个来源处理完成时调用（idx 从 1 开始）。
	OnSourceDone(idx, total int, res domain.SourceResult, dur time.Duration)
}
