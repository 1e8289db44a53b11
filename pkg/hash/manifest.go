// Package hash implements the case-directory content manifest (.fz_hash)
// and the cache-match protocol built on it: two case directories with an
// identical manifest are treated as the same simulation run, letting a
// cache:// calculator back answer a case without re-running it.
package hash

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const ManifestName = ".fz_hash"

// WriteManifest writes <dir>/.fz_hash, one "<md5hex>  <filename>" line per
// regular file directly inside dir (subdirectories are not descended
// into). Files named in order appear first in that order; every other
// file follows in alphabetical order. The manifest itself is always
// excluded.
func WriteManifest(dir string, order []string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	present := map[string]bool{}
	for _, e := range entries {
		if !e.IsDir() && e.Name() != ManifestName {
			present[e.Name()] = true
		}
	}

	var lines []string
	seen := map[string]bool{}
	for _, name := range order {
		if !present[name] || seen[name] {
			continue
		}
		seen[name] = true
		line, err := hashLine(dir, name)
		if err != nil {
			return fmt.Errorf("hash %s: %w", name, err)
		}
		lines = append(lines, line)
	}

	var rest []string
	for name := range present {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		line, err := hashLine(dir, name)
		if err != nil {
			return fmt.Errorf("hash %s: %w", name, err)
		}
		lines = append(lines, line)
	}

	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(filepath.Join(dir, ManifestName), []byte(content), 0o644)
}

func hashLine(dir, name string) (string, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x  %s", h.Sum(nil), name), nil
}

// ReadManifest returns the raw contents of <dir>/.fz_hash, trimmed.
func ReadManifest(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// FindCacheMatch searches cacheBase, then each of its immediate
// subdirectories (one level, not recursive), for a .fz_hash manifest whose
// content is byte-for-byte identical to caseManifest. It returns the
// matching directory path, or "" if none matched.
func FindCacheMatch(cacheBase, caseManifest string) (string, error) {
	info, err := os.Stat(cacheBase)
	if err != nil || !info.IsDir() {
		return "", err
	}

	if m, err := ReadManifest(cacheBase); err == nil && m == caseManifest {
		return cacheBase, nil
	}

	entries, err := os.ReadDir(cacheBase)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(cacheBase, e.Name())
		if m, err := ReadManifest(sub); err == nil && m == caseManifest {
			return sub, nil
		}
	}
	return "", nil
}

// ResolveCachePaths expands a cache:// path pattern into concrete
// directories: an existing literal directory is returned as-is; otherwise
// the pattern is tried as a glob, then its last element as a regex matched
// against the names of the directories directly inside the pattern's parent
// directory (the current directory when the pattern has no separator).
func ResolveCachePaths(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		return []string{pattern}, nil
	}

	if matches, err := filepath.Glob(pattern); err == nil && len(matches) > 0 {
		var dirs []string
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				dirs = append(dirs, m)
			}
		}
		if len(dirs) > 0 {
			sort.Strings(dirs)
			return dirs, nil
		}
	}

	parent := filepath.Dir(pattern)
	name := filepath.Base(pattern)
	if pattern == "." || !strings.Contains(pattern, string(filepath.Separator)) {
		parent = "."
		name = pattern
	}
	re, err := regexp.Compile(name)
	if err != nil {
		return nil, nil
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && re.MatchString(e.Name()) {
			dirs = append(dirs, filepath.Join(parent, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
