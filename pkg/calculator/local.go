package calculator

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jihwankim/fzgo/pkg/extract"
)

var shellOperators = map[string]bool{
	"|": true, "||": true, "&&": true, ">": true, ">>": true, "<": true, "&": true, ";": true,
}

// LocalBackend runs a case's payload as a shell command on the local host
// (the sh:// scheme).
type LocalBackend struct {
	Resolver     *extract.ShellResolver
	SubmitterCwd string // resolved once at engine construction
}

func NewLocalBackend(resolver *extract.ShellResolver, submitterCwd string) *LocalBackend {
	return &LocalBackend{Resolver: resolver, SubmitterCwd: submitterCwd}
}

func (b *LocalBackend) Execute(ctx context.Context, caseDir string, rawURI string) Result {
	u, err := ParseURI(rawURI)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}

	command := b.rewriteCommand(u.Payload)
	if b.Resolver != nil {
		command = b.Resolver.ReplaceCommandsInString(command)
	}

	if isCancelled(ctx) {
		return Result{Status: StatusError, Err: context.Canceled, CommandRan: command}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = caseDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	end := time.Now()

	_ = os.WriteFile(caseDirPath(caseDir, "out.txt"), stdout.Bytes(), 0o644)
	_ = os.WriteFile(caseDirPath(caseDir, "err.txt"), stderr.Bytes(), 0o644)

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	_ = writeLog(caseDir, logEntry{
		Command: command, ExitCode: exitCode, Start: start, End: end,
		User: currentUser(), Cwd: caseDir,
	})

	if runErr != nil {
		return Result{Status: StatusFailed, CommandRan: command, Err: runErr}
	}
	return Result{Status: StatusDone, CommandRan: command}
}

// rewriteCommand expands any bare token that exists as a file relative to
// the submitter's CWD into an absolute path, leaving flags and shell
// operators untouched.
func (b *LocalBackend) rewriteCommand(payload string) string {
	if b.SubmitterCwd == "" {
		return payload
	}
	tokens := strings.Fields(payload)
	for i, tok := range tokens {
		if strings.HasPrefix(tok, "-") || shellOperators[tok] {
			continue
		}
		candidate := filepath.Join(b.SubmitterCwd, tok)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(candidate)
			if err == nil {
				tokens[i] = abs
			}
		}
	}
	return strings.Join(tokens, " ")
}
