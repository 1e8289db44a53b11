package calculator

import (
	"archive/tar"
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteFrameReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, frameStdout, []byte("hello")); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	kind, payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if kind != frameStdout || string(payload) != "hello" {
		t.Fatalf("readFrame = (%v, %q)", kind, payload)
	}
}

func TestWriteFrameReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, frameDisconnect, nil); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	kind, payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if kind != frameDisconnect || len(payload) != 0 {
		t.Fatalf("readFrame = (%v, %q)", kind, payload)
	}
}

func TestFunzPushDirSendsTarFrame(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "input.dat"), []byte("x=1\n"), 0o644); err != nil {
		t.Fatalf("write input.dat: %v", err)
	}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- funzPushDir(client, dir) }()

	kind, payload, err := readFrame(server)
	if err != nil {
		t.Fatalf("readFrame on server side: %v", err)
	}
	if kind != framePushDir {
		t.Fatalf("kind = %v, want framePushDir", kind)
	}
	if len(payload) == 0 {
		t.Fatalf("expected a non-empty tar payload")
	}
	if err := <-done; err != nil {
		t.Fatalf("funzPushDir: %v", err)
	}
}

func TestFunzPullDirExtractsFiles(t *testing.T) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	content := []byte("result\n")
	if err := tw.WriteHeader(&tar.Header{Name: "out.txt", Size: int64(len(content)), Mode: 0o644}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() { _ = writeFrame(server, framePullDir, tarBuf.Bytes()) }()

	destDir := t.TempDir()
	if err := funzPullDir(client, destDir); err != nil {
		t.Fatalf("funzPullDir: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(destDir, "out.txt"))
	if err != nil {
		t.Fatalf("expected extracted out.txt: %v", err)
	}
	if string(data) != "result\n" {
		t.Fatalf("out.txt = %q", data)
	}
}

func TestDiscoverDaemonTimesOutWithNoAdvertisement(t *testing.T) {
	_, err := discoverDaemon("59123", "anything", 150*time.Millisecond)
	if err == nil {
		t.Fatalf("expected a timeout error when no advertisement arrives")
	}
}

func TestDiscoverDaemonRejectsInvalidPort(t *testing.T) {
	_, err := discoverDaemon("not-a-port", "anything", 10*time.Millisecond)
	if err == nil {
		t.Fatalf("expected an error for a non-numeric udp port")
	}
}

func TestFunzBackendExecuteRejectsBadURI(t *testing.T) {
	b := NewFunzBackend(0)
	res := b.Execute(context.Background(), t.TempDir(), "://bad")
	if res.Status != StatusError {
		t.Fatalf("Status = %v, want error", res.Status)
	}
}

func TestFunzBackendExecuteRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewFunzBackend(0)
	res := b.Execute(ctx, t.TempDir(), "funz://host/mycode")
	if res.Status != StatusError {
		t.Fatalf("Status = %v, want error for a cancelled context", res.Status)
	}
}

func TestFunzBackendExecuteFailsWhenNoDaemonAdvertises(t *testing.T) {
	b := NewFunzBackend(150 * time.Millisecond)
	res := b.Execute(context.Background(), t.TempDir(), "funz://127.0.0.1:59124/mycode")
	if res.Status != StatusError {
		t.Fatalf("Status = %v, want error when no daemon is reachable", res.Status)
	}
}
