// Package share 枚举节点共享目录中可发布的文件
package share

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// List 返回 dir 中可发布的普通文件名，按名称排序
//
// 符号链接按目标判断。子目录、特殊文件以及名称含空白的文件被跳过，
// 名称含空白的文件无法在以空白分隔的控制命令中表示。
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
