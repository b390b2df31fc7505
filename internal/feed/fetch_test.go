package feed

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
)

const sampleICS = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

func allowAll(netip.Addr) bool { return false }

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/cal.ics", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "webcal://example.com/cal.ics", want: "https://example.com/cal.ics"},
		{in: "WEBCALS://example.com/cal.ics", want: "https://example.com/cal.ics"},
		{in: "https://example.com/cal.ics", want: "https://example.com/cal.ics"},
		{in: "http://example.com/cal.ics", want: "http://example.com/cal.ics"},
		{in: "ftp://example.com/cal.ics", wantErr: true},
		{in: "https:///cal.ics", wantErr: true},
		{in: "::bad", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("NormalizeURL(%q) err = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBlockedAddr(t *testing.T) {
	for _, s := range []string{"127.0.0.1", "::1", "169.254.169.254", "0.0.0.0", "fe80::1", "224.0.0.1"} {
		if !BlockedAddr(netip.MustParseAddr(s)) {
			t.Errorf("%s should be blocked", s)
		}
	}
	for _, s := range []string{"93.184.216.34", "10.0.0.5", "2606:2800:220:1::1"} {
		if BlockedAddr(netip.MustParseAddr(s)) {
			t.Errorf("%s should be allowed", s)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte(sampleICS))
	raw := base64.RawStdEncoding.EncodeToString([]byte(sampleICS))

	for _, uri := range []string{
		"data:text/calendar;base64," + enc,
		"data:text/calendar; charset=utf-8;base64," + enc,
		"data:;base64," + enc,
		"data:text/calendar;base64," + raw,
	} {
		got, err := DecodeDataURI(uri)
		if err != nil {
			t.Errorf("DecodeDataURI(%.40q): %v", uri, err)
			continue
		}
		if string(got) != sampleICS {
			t.Errorf("decoded %q", got)
		}
	}

	for name, uri := range map[string]string{
		"no comma":   "data:text/calendar;base64",
		"not base64": "data:text/calendar," + sampleICS,
		"image mime": "data:image/png;base64,AAAA",
		"bad chars":  "data:text/calendar;base64,!!!",
	} {
		if _, err := DecodeDataURI(uri); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, ok := range []string{sampleICS, "\ufeff" + sampleICS, "\r\n  begin:vcalendar\r\n"} {
		if err := Validate([]byte(ok)); err != nil {
			t.Errorf("Validate(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "BEGIN:VCARD", "<html>BEGIN:VCALENDAR"} {
		if err := Validate([]byte(bad)); err == nil {
			t.Errorf("Validate(%q) expected error", bad)
		}
	}
}

func TestLoad(t *testing.T) {
	ts := serve(t, "text/calendar; charset=utf-8", sampleICS)
	f := NewFetcher(allowAll)
	ctx := context.Background()

	data, source, err := f.Load(ctx, ts.URL+"/redirect")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != sampleICS || source != ts.URL+"/redirect" {
		t.Errorf("Load = %q, %q", data, source)
	}

	data, source, err = f.Load(ctx, "data:text/calendar;base64,"+base64.StdEncoding.EncodeToString([]byte(sampleICS)))
	if err != nil || string(data) != sampleICS || source != "data-uri" {
		t.Errorf("Load(data uri) = %q, %q, %v", data, source, err)
	}
}

func TestLoad_Rejects(t *testing.T) {
	ctx := context.Background()

	html := serve(t, "text/html", "<html></html>")
	if _, _, err := NewFetcher(allowAll).Load(ctx, html.URL); err == nil || !strings.Contains(err.Error(), "content type") {
		t.Errorf("html feed: %v", err)
	}

	notCal := serve(t, "text/plain", "hello")
	if _, _, err := NewFetcher(allowAll).Load(ctx, notCal.URL); err == nil || !strings.Contains(err.Error(), "VCALENDAR") {
		t.Errorf("plain text feed: %v", err)
	}

	ok := serve(t, "text/calendar", sampleICS)
	if _, _, err := NewFetcher(BlockedAddr).Load(ctx, ok.URL); err == nil || !strings.Contains(err.Error(), "blocked address") {
		t.Errorf("loopback feed: %v", err)
	}

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	if _, _, err := NewFetcher(allowAll).Load(ctx, missing.URL); err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("404 feed: %v", err)
	}
}
