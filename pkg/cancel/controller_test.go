package cancel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestControllerStopTripsOnce(t *testing.T) {
	c := New(Config{})
	var calls int
	c.OnStop(func() { calls++ })
	c.OnStop(func() { calls++ })

	c.Stop("manual")
	c.Stop("manual again")

	if !c.IsStopped() {
		t.Fatalf("expected IsStopped true")
	}
	if c.Reason() != "manual" {
		t.Fatalf("Reason() = %q, want first trip reason to stick", c.Reason())
	}
	if calls != 2 {
		t.Fatalf("expected both callbacks to fire exactly once, got %d", calls)
	}
}

func TestControllerOnStopAfterTripFiresImmediately(t *testing.T) {
	c := New(Config{})
	c.Stop("already stopped")

	done := make(chan struct{})
	c.OnStop(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("OnStop callback registered after trip never fired")
	}
}

func TestControllerPanickingCallbackDoesNotBlockOthers(t *testing.T) {
	c := New(Config{})
	var secondCalled bool
	c.OnStop(func() { panic("boom") })
	c.OnStop(func() { secondCalled = true })

	c.Stop("trip")
	if !secondCalled {
		t.Fatalf("expected second callback to still run after the first panicked")
	}
}

func TestControllerWatchesStopFile(t *testing.T) {
	dir := t.TempDir()
	stopFile := filepath.Join(dir, "STOP")

	c := New(Config{StopFile: stopFile, PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	if c.IsStopped() {
		t.Fatalf("expected controller not stopped before stop file appears")
	}
	if err := os.WriteFile(stopFile, []byte("stop"), 0o644); err != nil {
		t.Fatalf("write stop file: %v", err)
	}

	select {
	case <-c.StopChannel():
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not trip after stop file appeared")
	}
}
