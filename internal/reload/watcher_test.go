package reload

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatch_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("calendar: {}\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, path, quietLogger(), func() { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(path, []byte("calendar:\n  start_hour: 7\n"), 0o644)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "config change not reported")

	time.Sleep(3 * Debounce)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected one debounced call, got %d", n)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("{}\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, path, quietLogger(), func() { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644)

	time.Sleep(3 * Debounce)
	if n := calls.Load(); n != 0 {
		t.Errorf("unrelated file triggered %d reloads", n)
	}
}

func TestWatch_RenameSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("{}\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, path, quietLogger(), func() { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	tmp := filepath.Join(dir, ".config.yaml.swp")
	_ = os.WriteFile(tmp, []byte("calendar:\n  end_hour: 21\n"), 0o644)
	_ = os.Rename(tmp, path)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "rename-save not reported")
}

func TestWatch_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, quietLogger(), func() {}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
