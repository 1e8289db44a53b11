package calculator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jihwankim/fzgo/pkg/hash"
)

// CacheBackend satisfies a case from a previously computed case directory
// whose .fz_hash manifest matches the current one byte-for-byte (the
// cache:// scheme).
type CacheBackend struct{}

func NewCacheBackend() *CacheBackend { return &CacheBackend{} }

func (b *CacheBackend) Execute(ctx context.Context, caseDir string, rawURI string) Result {
	u, err := ParseURI(rawURI)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}
	if isCancelled(ctx) {
		return Result{Status: StatusError, Err: context.Canceled}
	}

	start := time.Now()
	caseManifest, err := hash.ReadManifest(caseDir)
	if err != nil {
		return Result{Status: StatusError, Err: fmt.Errorf("read case manifest: %w", err)}
	}

	candidates, err := hash.ResolveCachePaths(u.Payload)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}

	var matched string
	for _, base := range candidates {
		m, err := hash.FindCacheMatch(base, caseManifest)
		if err == nil && m != "" {
			matched = m
			break
		}
	}

	if matched == "" {
		_ = writeLog(caseDir, logEntry{Command: "cache:" + u.Payload, ExitCode: 1, Start: start, End: time.Now(), User: currentUser(), Cwd: caseDir})
		return Result{Status: StatusError, CommandRan: "cache:" + u.Payload, Err: fmt.Errorf("no cache hit")}
	}

	if err := copyTree(matched, caseDir); err != nil {
		return Result{Status: StatusError, Err: fmt.Errorf("copy cache hit: %w", err)}
	}

	_ = writeLog(caseDir, logEntry{Command: "cache:" + matched, ExitCode: 0, Start: start, End: time.Now(), User: currentUser(), Cwd: caseDir})
	return Result{Status: StatusCached, CommandRan: "cache:" + matched}
}

// copyTree copies every regular file from src into dst, overwriting and
// preserving mtimes where possible. Subdirectories are not descended into,
// matching the flat, single-level scope of a .fz_hash manifest.
func copyTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if info, err := os.Stat(src); err == nil {
		_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	return nil
}
