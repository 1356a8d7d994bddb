package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/kanjiscan/internal/domain"
)

// ArtifactPrefix 是导出产物的文件/目录名前缀；扫描时永久排除，避免把上次的导出当成输入。
const ArtifactPrefix = "unknown_kanji_"

// ScanSources 收集 target 下所有可处理的来源文件。
//
// 规则（硬约束）：
// - target 是文件：扩展名受支持则返回该文件，否则返回空
// - target 是目录：递归遍历；扩展名大小写不敏感
// - 永久排除：unknown_kanji_* 导出产物、以 '.' 开头的隐藏文件/目录（含原子写的临时文件）
// - excludeDirs：均视为相对 target 的路径（若是绝对路径，则按绝对路径处理）
//
// 注意：扫描阶段只做 stat，不读文件内容。结果按 RelPath 稳定排序；
// 业务顺序（按数字/自然顺序）由上层决定。
func ScanSources(target string, excludeDirs []string) ([]domain.SourceFile, error) {
	target = filepath.Clean(target)
	fi, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		f, ok := newSourceFile(target, filepath.Base(target), fi.Size())
		if !ok {
			return nil, nil
		}
		return []domain.SourceFile{f}, nil
	}

	root := target
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.SourceFile, 0, 64)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && (isHidden(d.Name()) || isArtifact(d.Name()) || isExcluded(path, excluded)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if f, ok := newSourceFile(path, rel, info.Size()); ok {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("扫描 %q 失败：%w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func newSourceFile(path, rel string, size int64) (domain.SourceFile, bool) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	kind, ok := domain.KindOfExt(ext)
	if !ok {
		return domain.SourceFile{}, false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return domain.SourceFile{
		AbsPath: abs,
		RelPath: rel,
		Name:    name,
		Ext:     ext,
		Kind:    kind,
		Series:  filepath.Base(filepath.Dir(abs)),
		Size:    size,
	}, true
}

func isHidden(name string) bool { return strings.HasPrefix(name, ".") }

func isArtifact(name string) bool { return strings.HasPrefix(name, ArtifactPrefix) }

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(filepath.Separator))
}
