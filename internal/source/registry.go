package source

import (
	"fmt"

	"github.com/John-Robertt/kanjiscan/internal/domain"
)

// Registry 是提取器的只读注册表（按来源种类索引）。
type Registry struct {
	byKind map[domain.Kind]Extractor
}

func NewRegistry(extractors ...Extractor) (Registry, error) {
	byKind := make(map[domain.Kind]Extractor, len(extractors))
	for _, x := range extractors {
		if x == nil {
			return Registry{}, fmt.Errorf("extractor 不能为空")
		}
		k := x.Kind()
		if k == "" {
			return Registry{}, fmt.Errorf("extractor.Kind 不能为空")
		}
		if _, ok := byKind[k]; ok {
			return Registry{}, fmt.Errorf("重复的 extractor：%q", k)
		}
		byKind[k] = x
	}
	return Registry{byKind: byKind}, nil
}

func (r Registry) Get(k domain.Kind) (Extractor, bool) {
	if r.byKind == nil {
		return nil, false
	}
	x, ok := r.byKind[k]
	return x, ok
}
