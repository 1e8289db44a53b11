// Package calculator implements the polymorphic case runners: local shell,
// SSH, cache lookup, and UDP-broadcast-discovered Funz daemons. Every
// backend shares one contract — run a compiled case directory against a
// calculator URI and report status plus where the command's stdout/stderr
// ended up.
package calculator

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Status is the outcome of one backend execution attempt.
type Status string

const (
	StatusDone   Status = "done"
	StatusCached Status = "cached"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// Result is what a Backend returns for one case directory.
type Result struct {
	Status     Status
	CommandRan string
	Err        error
}

// Backend is the common contract every calculator URI scheme implements.
type Backend interface {
	// Execute runs uri's payload against caseDir, writing out.txt/err.txt
	// and log.txt inside it, and returns the outcome. It must respect ctx
	// cancellation: stop launching new work and terminate running children.
	Execute(ctx context.Context, caseDir string, uri string) Result
}

// URI is a parsed calculator address: scheme plus scheme-specific fields.
type URI struct {
	Scheme  string
	User    string
	Host    string
	Port    string
	Payload string // shell command, code name, or cache path pattern
	Raw     string
}

// ParseURI splits a calculator address of the form
// "scheme://[user@][host][:port]/payload" into its parts. sh:// and
// cache:// typically carry no host, only a payload.
func ParseURI(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("parse calculator uri %q: %w", raw, err)
	}
	out := URI{Scheme: u.Scheme, Host: u.Hostname(), Port: u.Port(), Raw: raw}
	if u.User != nil {
		out.User = u.User.Username()
	}
	payload := strings.TrimPrefix(u.Path, "/")
	if payload == "" && u.Opaque != "" {
		payload = u.Opaque
	}
	out.Payload = payload
	return out, nil
}

// logEntry is the fixed set of fields every backend writes to log.txt.
type logEntry struct {
	Command  string
	ExitCode int
	Start    time.Time
	End      time.Time
	User     string
	Hostname string
	OS       string
	Cwd      string
}

func writeLog(caseDir string, e logEntry) error {
	hostname, _ := os.Hostname()
	if e.Hostname == "" {
		e.Hostname = hostname
	}
	var b strings.Builder
	fmt.Fprintf(&b, "command: %s\n", e.Command)
	fmt.Fprintf(&b, "exit_code: %d\n", e.ExitCode)
	fmt.Fprintf(&b, "start: %s\n", e.Start.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "end: %s\n", e.End.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "duration_s: %s\n", strconv.FormatFloat(e.End.Sub(e.Start).Seconds(), 'f', 6, 64))
	fmt.Fprintf(&b, "user: %s\n", e.User)
	fmt.Fprintf(&b, "hostname: %s\n", e.Hostname)
	fmt.Fprintf(&b, "os: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "cwd: %s\n", e.Cwd)
	return os.WriteFile(caseDirPath(caseDir, "log.txt"), []byte(b.String()), 0o644)
}

func caseDirPath(caseDir, name string) string {
	if strings.HasSuffix(caseDir, string(os.PathSeparator)) {
		return caseDir + name
	}
	return caseDir + string(os.PathSeparator) + name
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
