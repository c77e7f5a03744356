package common

import (
	"os"
	"path/filepath"
	"strings"
)

// Driver store paths always use Windows separators, even when an offline image is
// inspected from another platform, so Base and Dir accept both '\' and '/'.

func isPathSeparator(c byte) bool {
	return c == '\\' || c == '/'
}

func lastSeparator(path string) int {
	return strings.LastIndexFunc(path, func(r rune) bool {
		return r < 0x80 && isPathSeparator(byte(r))
	})
}

// Base returns the file name part of path.
func Base(path string) string {
	return path[lastSeparator(path)+1:]
}

// Dir returns the parent directory of path, keeping the separator of a volume root ("C:\").
// It returns "" when path has no directory part.
func Dir(path string) string {
	i := lastSeparator(path)
	if i < 0 {
		return ""
	}

	dir := path[:i]
	if dir == "" || strings.HasSuffix(dir, ":") {
		return path[:i+1]
	}
	return dir
}

// FolderSize sums the sizes of all regular files below dir. Unreadable entries are skipped.
func FolderSize(dir string) int64 {
	if dir == "" {
		return 0
	}

	var total int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})

	return total
}
