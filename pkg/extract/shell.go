// Package extract implements the output extractor: running the Model's
// configured shell pipelines inside a finished case directory, casting
// their stdout, and resolving bare command names against a configurable
// shell path when the host's PATH doesn't already carry them.
package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
)

// commonCommands is the fixed allowlist of bare command names the
// resolver will try to rewrite to absolute paths.
var commonCommands = []string{
	"grep", "awk", "sed", "cut", "tr", "cat", "head", "tail",
	"sort", "uniq", "wc", "find", "xargs", "echo", "printf",
	"bash", "sh", "gawk", "perl", "python", "python3",
	"java", "gcc", "g++", "make", "cmake", "git",
	"zip", "unzip", "tar", "gzip", "gunzip",
	"curl", "wget", "nc", "ping", "ssh", "scp",
}

// ShellResolver resolves bare command names to absolute paths using an
// explicit search path (FZ_SHELL_PATH) in preference to the process PATH.
type ShellResolver struct {
	customPath string
	onWindows  bool

	mu    sync.Mutex
	cache map[string]string // "" means looked up and not found
}

func NewShellResolver(customPath string) *ShellResolver {
	return &ShellResolver{
		customPath: customPath,
		onWindows:  runtime.GOOS == "windows",
		cache:      map[string]string{},
	}
}

func (r *ShellResolver) separator() string {
	if r.onWindows {
		return ";"
	}
	return ":"
}

// SearchPaths returns the directories to search, from FZ_SHELL_PATH if set,
// else the process PATH.
func (r *ShellResolver) SearchPaths() []string {
	raw := r.customPath
	if raw == "" {
		raw = os.Getenv("PATH")
	}
	var out []string
	for _, p := range strings.Split(raw, r.separator()) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve returns the absolute path of command, or "" if not found.
func (r *ShellResolver) Resolve(command string) string {
	r.mu.Lock()
	if v, ok := r.cache[command]; ok {
		r.mu.Unlock()
		return v
	}
	r.mu.Unlock()

	for _, dir := range r.SearchPaths() {
		candidate := filepath.Join(dir, command)
		if fileExists(candidate) {
			r.store(command, candidate)
			return candidate
		}
		if r.onWindows && !strings.HasSuffix(command, ".exe") {
			exe := candidate + ".exe"
			if fileExists(exe) {
				r.store(command, exe)
				return exe
			}
		}
	}
	r.store(command, "")
	return ""
}

func (r *ShellResolver) store(command, value string) {
	r.mu.Lock()
	r.cache[command] = value
	r.mu.Unlock()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReplaceCommandsInString rewrites every occurrence of a commonCommands
// entry in s to its resolved absolute path, using word-boundary matching.
// With no custom shell path configured, s is returned unchanged — the
// process PATH is trusted to already resolve everything.
func (r *ShellResolver) ReplaceCommandsInString(s string) string {
	if r.customPath == "" {
		return s
	}
	out := s
	for _, cmd := range commonCommands {
		resolved := r.Resolve(cmd)
		if resolved == "" {
			continue
		}
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(cmd) + `\b`)
		out = re.ReplaceAllLiteralString(out, resolved)
	}
	return out
}
