package calculator

import (
	"context"
	"testing"
)

func TestSSHBackendHostKeyCallbackAutoAccept(t *testing.T) {
	b := NewSSHBackend(nil, true, 0, nil)
	cb := b.hostKeyCallback()
	if err := cb("host", nil, nil); err != nil {
		t.Fatalf("expected auto-accept callback to accept any key, got %v", err)
	}
}

func TestSSHBackendHostKeyCallbackRejectsByDefault(t *testing.T) {
	b := NewSSHBackend(nil, false, 0, nil)
	cb := b.hostKeyCallback()
	if err := cb("host", nil, nil); err == nil {
		t.Fatalf("expected host key verification to be required when auto-accept is disabled")
	}
}

func TestSSHBackendExecuteRejectsBadURI(t *testing.T) {
	b := NewSSHBackend(nil, true, 0, nil)
	res := b.Execute(context.Background(), t.TempDir(), "://bad")
	if res.Status != StatusError {
		t.Fatalf("Status = %v, want error", res.Status)
	}
}

func TestSSHBackendExecuteRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewSSHBackend(nil, true, 0, nil)
	res := b.Execute(ctx, t.TempDir(), "ssh://user@127.0.0.1/run.sh")
	if res.Status != StatusError {
		t.Fatalf("Status = %v, want error for a cancelled context", res.Status)
	}
}

func TestSSHBackendExecuteFailsFastOnUnreachableHost(t *testing.T) {
	b := NewSSHBackend(nil, true, 0, nil)
	res := b.Execute(context.Background(), t.TempDir(), "ssh://user@127.0.0.1:1/run.sh")
	if res.Status != StatusError {
		t.Fatalf("Status = %v, want error for an unreachable host", res.Status)
	}
}

func TestSSHBackendReusesPooledConnectionKey(t *testing.T) {
	b := NewSSHBackend(nil, true, 0, nil)
	if len(b.conns) != 0 {
		t.Fatalf("expected a fresh backend to start with no pooled connections")
	}
}
