package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
)

// 可替换的函数指针，便于测试模拟 rename/link 失败。
var (
	renameFunc   = os.Rename
	linkFunc     = os.Link
	openExclFunc = os.OpenFile
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
// 上层可把它映射为 error_code=export_failed。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// WriteFileAtomicReplace 在 dir 下原子写入 name，目标已存在则覆盖。
//
// 用于 settings.json 这类“下一次运行读取”的内部状态。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	tmpName, err := writeTemp(dir, name, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName)

	if err := renameFunc(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}
	_ = syncDirBestEffort(dir)
	return nil
}

// WriteFileAtomicNoOverwrite 在 dir 下原子写入 name，目标已存在时返回 os.ErrExist。
//
// 约束：
// - 导出产物（unknown_kanji_*.txt）永不覆盖已有文件
// - 目标是目录或非普通文件：返回 *PathTypeConflictError
// - 临时文件与目标同目录；发布使用 link（目标存在即失败），不依赖“先检查后 rename”
// - 文件系统不支持硬链接（exFAT/FAT、部分 SMB）：退化为 O_EXCL 创建后直接写入
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	dst := filepath.Join(filepath.Clean(dir), name)
	if err := checkAbsentOrRegular(dst); err != nil {
		return err
	}

	tmpName, err := writeTemp(dir, name, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName)

	err = linkFunc(tmpName, dst)
	if err != nil && linkUnsupported(err) {
		err = createExclusive(dst, data)
	}
	if err != nil {
		if os.IsExist(err) {
			return os.ErrExist
		}
		return err
	}
	_ = syncDirBestEffort(dir)
	return nil
}

func linkUnsupported(err error) bool {
	return errors.Is(err, errors.ErrUnsupported) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EPERM)
}

// createExclusive 以 O_EXCL 创建 dst 并写入 data；写入失败时删除半成品。
func createExclusive(dst string, data []byte) error {
	f, err := openExclFunc(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	err = writeAll(f, data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
	}
	return err
}

func checkAbsentOrRegular(dst string) error {
	fi, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	return os.ErrExist
}

// writeTemp 在 dir 下创建 "."+name+".tmp-*" 并写入 data（已 Sync + Close）。
// 失败时临时文件已被清理。
func writeTemp(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := writeAll(tmp, data); err != nil {
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil && runtime.GOOS != "windows" {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	ok = true
	return tmpName, nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义不稳定，直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
