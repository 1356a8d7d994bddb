package app

import (
	"path/filepath"
	"sort"

	"github.com/John-Robertt/kanjiscan/internal/domain"
	"github.com/John-Robertt/kanjiscan/internal/order"
)

// GroupSources 把扫描得到的文件组织为逻辑来源（Source 只存 file index）。
//
// - 文档/字幕：每个文件一个来源，名字为文件名
// - 纯文本：同一父目录下的 .txt 合并为一个来源，名字为目录名；组内文件按自然顺序
// - 来源之间按 strategy 对名字排序（稳定）；名字相同时保持扫描顺序
func GroupSources(files []domain.SourceFile, strategy order.Strategy) []domain.Source {
	sources := make([]domain.Source, 0, len(files))
	textGroups := make(map[string]int, 8)

	for i := range files {
		f := files[i]
		if f.Kind != domain.KindText {
			sources = append(sources, domain.Source{
				Name:    f.Name,
				Kind:    f.Kind,
				Series:  f.Series,
				FileIdx: []int{i},
			})
			continue
		}

		dir := filepath.Dir(f.AbsPath)
		if idx, ok := textGroups[dir]; ok {
			sources[idx].FileIdx = append(sources[idx].FileIdx, i)
			continue
		}
		textGroups[dir] = len(sources)
		sources = append(sources, domain.Source{
			Name:    filepath.Base(dir),
			Kind:    domain.KindText,
			Series:  f.Series,
			FileIdx: []int{i},
		})
	}

	for i := range sources {
		if len(sources[i].FileIdx) < 2 {
			continue
		}
		idx := sources[i].FileIdx
		sort.SliceStable(idx, func(a, b int) bool {
			return order.Less(files[idx[a]].Name, files[idx[b]].Name)
		})
	}

	names := make([]string, len(sources))
	for i := range sources {
		names[i] = sources[i].Name
	}
	order.Sort(names, strategy)
	rank := make(map[string]int, len(names))
	for i, n := range names {
		if _, ok := rank[n]; !ok {
			rank[n] = i
		}
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return rank[sources[i].Name] < rank[sources[j].Name]
	})
	return sources
}
