package template

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jihwankim/fzgo/pkg/model"
)

// isBinary sniffs for a null byte in the first 8KiB, the same heuristic the
// original package uses to decide whether a file is text.
func isBinary(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

// DiscoverVariables walks the template tree rooted at path and returns a
// map of variable name to its declared default value, or a nil Value when
// no default was given. Binary files are skipped silently.
func DiscoverVariables(path string, m model.Model) (map[string]*model.Value, error) {
	result := map[string]*model.Value{}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	visit := func(file string) error {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if isBinary(data) {
			return nil
		}
		for _, tok := range findVariables(m, string(data)) {
			if _, seen := result[tok.Name]; seen {
				if tok.HasDefault && result[tok.Name] == nil {
					v := model.ParseValue(tok.Default)
					result[tok.Name] = &v
				}
				continue
			}
			if tok.HasDefault {
				v := model.ParseValue(tok.Default)
				result[tok.Name] = &v
			} else {
				result[tok.Name] = nil
			}
		}
		return nil
	}

	if !info.IsDir() {
		return result, visit(path)
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return visit(p)
	})
	return result, err
}
