// Package feed loads iCalendar documents from URLs and data URIs and keeps
// subscribed feeds imported on a cron schedule.
package feed

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

const (
	// MaxSize is the largest calendar accepted from any source.
	MaxSize      = 10 << 20 // 10 MB
	maxRedirects = 5
)

// calendarTypes are the media types accepted for feeds and data URIs.
var calendarTypes = map[string]bool{
	"text/calendar":            true,
	"application/ics":          true,
	"text/x-vcalendar":         true,
	"application/octet-stream": true,
	"text/plain":               true,
}

// Fetcher downloads calendar feeds. Addresses are checked at dial time,
// after DNS resolution and on every redirect hop.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher that refuses to connect to addresses for
// which blocked reports true.
func NewFetcher(blocked func(netip.Addr) bool) *Fetcher {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return fmt.Errorf("blocked address %s: %w", address, err)
			}
			if blocked(ap.Addr().Unmap()) {
				return fmt.Errorf("blocked address %s", ap.Addr())
			}
			return nil
		},
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Fetcher{client: &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			return nil
		},
	}}
}

// BlockedAddr rejects loopback, link-local (cloud metadata lives at
// 169.254.169.254), multicast and unspecified addresses.
func BlockedAddr(a netip.Addr) bool {
	return a.IsLoopback() || a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast() ||
		a.IsMulticast() || a.IsUnspecified()
}

// NormalizeURL maps webcal:// to https:// and rejects other non-HTTP schemes.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "webcal", "webcals":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q (http, https or webcal)", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("invalid URL: missing host")
	}
	return u.String(), nil
}

// Load returns a validated calendar from a data URI or a feed URL, along
// with a description of where it came from.
func (f *Fetcher) Load(ctx context.Context, raw string) ([]byte, string, error) {
	var (
		data   []byte
		source string
		err    error
	)
	if strings.HasPrefix(raw, "data:") {
		data, err = DecodeDataURI(raw)
		source = "data-uri"
	} else {
		data, source, err = f.Get(ctx, raw)
	}
	if err != nil {
		return nil, "", err
	}
	if err := Validate(data); err != nil {
		return nil, "", err
	}
	return data, source, nil
}

// Validators are the HTTP cache validators of a previous download.
type Validators struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// Response is the outcome of a conditional download.
type Response struct {
	Body   []byte
	Source string
	Validators
	// NotModified is set when the server answered 304 to the validators
	// passed in; Body is empty.
	NotModified bool
}

// Get downloads raw and returns the body and the URL actually requested.
func (f *Fetcher) Get(ctx context.Context, raw string) ([]byte, string, error) {
	resp, err := f.Fetch(ctx, raw, Validators{})
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Source, nil
}

// Fetch downloads raw, sending prev as If-None-Match / If-Modified-Since.
func (f *Fetcher) Fetch(ctx context.Context, raw string, prev Validators) (Response, error) {
	target, err := NormalizeURL(raw)
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Response{}, fmt.Errorf("invalid request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar, application/ics;q=0.9, */*;q=0.1")
	if prev.ETag != "" {
		req.Header.Set("If-None-Match", prev.ETag)
	}
	if prev.LastModified != "" {
		req.Header.Set("If-Modified-Since", prev.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		if prev == (Validators{}) {
			return Response{}, errors.New("download failed: 304 without a prior download")
		}
		return Response{Source: target, Validators: prev, NotModified: true}, nil
	default:
		return Response{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && !calendarTypes[mt] {
			return Response{}, fmt.Errorf("unexpected content type %q", mt)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize+1))
	if err != nil {
		return Response{}, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > MaxSize {
		return Response{}, fmt.Errorf("calendar too large (max %d bytes)", MaxSize)
	}
	return Response{
		Body:   data,
		Source: target,
		Validators: Validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
	}, nil
}

// DecodeDataURI parses data:<mediatype>;base64,<payload>.
func DecodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("invalid data URI: missing comma separator")
	}
	meta, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, errors.New("only base64 data URIs are supported")
	}
	if meta != "" {
		mt, _, err := mime.ParseMediaType(meta)
		if err != nil || !calendarTypes[mt] {
			return nil, fmt.Errorf("unsupported media type in data URI: %q", meta)
		}
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxSize {
		return nil, fmt.Errorf("calendar too large (max %d bytes)", MaxSize)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// Validate checks that data opens a VCALENDAR block.
func Validate(data []byte) error {
	trimmed := bytes.TrimLeft(data, "\ufeff \t\r\n")
	head := trimmed[:min(len(trimmed), len("BEGIN:VCALENDAR"))]
	if !bytes.EqualFold(head, []byte("BEGIN:VCALENDAR")) {
		return errors.New("content is not an iCalendar file (missing BEGIN:VCALENDAR)")
	}
	return nil
}
