package feed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeImporter struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (f *fakeImporter) Import(_ context.Context, r io.Reader) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return 0, f.fail
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}
	return 1, nil
}

func (f *fakeImporter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func eventually(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestNewRunner_Validates(t *testing.T) {
	src := []Source{{ID: "clinic", URL: "https://example.com/cal.ics"}}
	if _, err := NewRunner("not a schedule", src, &fakeImporter{}, NewFetcher(allowAll), nil); err == nil {
		t.Error("expected schedule error")
	}
	if _, err := NewRunner("@hourly", nil, &fakeImporter{}, NewFetcher(allowAll), nil); err == nil {
		t.Error("expected error without sources")
	}
	if _, err := NewRunner("*/15 * * * *", src, &fakeImporter{}, NewFetcher(allowAll), nil); err != nil {
		t.Errorf("valid runner: %v", err)
	}
}

func TestRunner_SyncAll(t *testing.T) {
	good := serve(t, "text/calendar", sampleICS)
	bad := serve(t, "text/html", "<html></html>")
	imp := &fakeImporter{}

	r, err := NewRunner("@hourly", []Source{
		{ID: "good", URL: good.URL},
		{ID: "bad", URL: bad.URL},
	}, imp, NewFetcher(allowAll), nil)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	r.clock = func() time.Time { return at }

	got := r.SyncAll(context.Background())
	if len(got) != 2 {
		t.Fatalf("statuses = %+v", got)
	}
	if got[0].Imported != 1 || got[0].Error != "" || !got[0].SyncedAt.Equal(at) {
		t.Errorf("good = %+v", got[0])
	}
	if got[1].Error == "" {
		t.Errorf("bad should carry an error: %+v", got[1])
	}
	if imp.Calls() != 1 {
		t.Errorf("importer called %d times, want 1", imp.Calls())
	}

	st := r.Statuses()
	if len(st) != 2 || st[0].Source.ID != "good" || st[1].Source.ID != "bad" {
		t.Errorf("Statuses = %+v", st)
	}
}

func TestRunner_ImportError(t *testing.T) {
	ts := serve(t, "text/calendar", sampleICS)
	imp := &fakeImporter{fail: errors.New("disk full")}
	r, err := NewRunner("@hourly", []Source{{ID: "a", URL: ts.URL}}, imp, NewFetcher(allowAll), nil)
	if err != nil {
		t.Fatal(err)
	}
	st := r.Sync(context.Background(), r.sources[0])
	if st.Error != "disk full" || st.Imported != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestRunner_RunSyncsAtStartAndStops(t *testing.T) {
	ts := serve(t, "text/calendar", sampleICS)
	imp := &fakeImporter{}
	r, err := NewRunner("@yearly", []Source{{ID: "a", URL: ts.URL}}, imp, NewFetcher(allowAll), nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	eventually(t, 2*time.Second, func() bool { return imp.Calls() == 1 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_CancelledContextSkips(t *testing.T) {
	ts := serve(t, "text/calendar", sampleICS)
	imp := &fakeImporter{}
	r, err := NewRunner("@hourly", []Source{{ID: "a", URL: ts.URL}, {ID: "b", URL: ts.URL}}, imp, NewFetcher(allowAll), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := r.SyncAll(ctx); len(got) != 0 {
		t.Errorf("SyncAll on cancelled ctx = %+v", got)
	}
	if imp.Calls() != 0 {
		t.Errorf("importer called %d times", imp.Calls())
	}
}

func TestRunner_ConditionalGet(t *testing.T) {
	var hits, notModified int
	var mu sync.Mutex
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer ts.Close()

	imp := &fakeImporter{}
	r, err := NewRunner("@hourly", []Source{{ID: "a", URL: ts.URL}}, imp, NewFetcher(allowAll), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if st := r.Sync(ctx, r.sources[0]); st.Imported != 1 || st.Unchanged {
		t.Fatalf("first sync = %+v", st)
	}
	st := r.Sync(ctx, r.sources[0])
	if !st.Unchanged || st.Imported != 0 || st.Error != "" {
		t.Errorf("second sync = %+v", st)
	}
	mu.Lock()
	defer mu.Unlock()
	if imp.Calls() != 1 || hits != 2 || notModified != 1 {
		t.Errorf("imports = %d, hits = %d, 304s = %d", imp.Calls(), hits, notModified)
	}
}

func TestRunner_FailedImportRetriesInFull(t *testing.T) {
	var conditional atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			conditional.Add(1)
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer ts.Close()

	imp := &fakeImporter{fail: errors.New("locked")}
	r, err := NewRunner("@hourly", []Source{{ID: "a", URL: ts.URL}}, imp, NewFetcher(allowAll), nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Sync(context.Background(), r.sources[0])
	r.Sync(context.Background(), r.sources[0])
	if n := conditional.Load(); n != 0 {
		t.Errorf("conditional requests after failed import = %d", n)
	}
}
