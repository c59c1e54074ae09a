package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeEngine returns a canned result after an optional delay.
type fakeEngine struct {
	name  string
	html  string
	err   error
	delay time.Duration
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Result{HTML: f.html, Engine: f.name, FinalURL: req.URL}, nil
}

func newTestDispatcher(t *testing.T, engines ...Engine) *Dispatcher {
	t.Helper()
	memory := NewKindMemory(time.Minute)
	t.Cleanup(memory.Stop)
	delays := make([]time.Duration, len(engines))
	for i := range delays {
		delays[i] = time.Duration(i) * 10 * time.Millisecond
	}
	return NewDispatcher(engines, delays, memory, 1000)
}

func TestDispatcherFirstEngineWins(t *testing.T) {
	d := newTestDispatcher(t,
		&fakeEngine{name: "http", html: "<html>fast</html>"},
		&fakeEngine{name: "render", html: "<html>slow</html>", delay: time.Second},
	)

	result, err := d.Fetch(context.Background(), &Request{URL: "https://www.pinterest.com/pin/1/", Kind: KindPin})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Engine != "http" {
		t.Errorf("winner = %s, want http", result.Engine)
	}
}

func TestDispatcherEscalatesOnFailure(t *testing.T) {
	d := newTestDispatcher(t,
		&fakeEngine{name: "http", err: errors.New("shell page")},
		&fakeEngine{name: "render", html: "<html>rendered</html>"},
	)

	result, err := d.Fetch(context.Background(), &Request{URL: "https://www.pinterest.com/search/pins/?q=x", Kind: KindSearch})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Engine != "render" {
		t.Errorf("winner = %s, want render", result.Engine)
	}
}

func TestDispatcherAllEnginesFail(t *testing.T) {
	d := newTestDispatcher(t,
		&fakeEngine{name: "http", err: errors.New("blocked")},
		&fakeEngine{name: "render", err: errors.New("timeout")},
	)

	if _, err := d.Fetch(context.Background(), &Request{URL: "https://www.pinterest.com/pin/1/", Kind: KindPin}); err == nil {
		t.Fatal("expected error when every engine fails")
	}
}

func TestDispatcherRemembersWinnerPerKind(t *testing.T) {
	memory := NewKindMemory(time.Minute)
	t.Cleanup(memory.Stop)
	d := NewDispatcher([]Engine{
		&fakeEngine{name: "http", err: errors.New("shell page")},
		&fakeEngine{name: "render", html: "<html>rendered</html>"},
	}, []time.Duration{0, 10 * time.Millisecond}, memory, 1000)

	req := &Request{URL: "https://www.pinterest.com/search/pins/?q=x", Kind: KindSearch}
	if _, err := d.Fetch(context.Background(), req); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := memory.Get(KindSearch); got != "render" {
		t.Errorf("memory for search kind = %q, want render", got)
	}
	// A different kind has no memory yet.
	if got := memory.Get(KindPin); got != "" {
		t.Errorf("memory for pin kind = %q, want empty", got)
	}
}

func TestKindMemoryExpiry(t *testing.T) {
	m := NewKindMemory(10 * time.Millisecond)
	t.Cleanup(m.Stop)

	m.Set(KindPin, "http")
	if got := m.Get(KindPin); got != "http" {
		t.Fatalf("Get = %q, want http", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := m.Get(KindPin); got != "" {
		t.Errorf("expired entry = %q, want empty", got)
	}
}

func TestPageKindListing(t *testing.T) {
	for _, k := range []PageKind{KindSearch, KindTrending, KindListing} {
		if !k.listing() {
			t.Errorf("%s should be a listing kind", k)
		}
	}
	for _, k := range []PageKind{KindPin, KindBoard, KindProfile} {
		if k.listing() {
			t.Errorf("%s should not be a listing kind", k)
		}
	}
}

func TestNeedsRender(t *testing.T) {
	filler := strings.Repeat("real page content with plenty of visible words ", 20)

	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "empty spa shell",
			body: `<html><body><div id="root"></div></body></html>`,
			want: true,
		},
		{
			name: "noscript warning",
			body: `<html><body><noscript>Please enable JavaScript</noscript>` + filler + `</body></html>`,
			want: true,
		},
		{
			name: "server rendered page",
			body: `<html><body><h1>Title</h1><p>` + filler + `</p></body></html>`,
			want: false,
		},
		{
			name: "tiny body",
			body: `<html><body><p>hi</p></body></html>`,
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsRender(tt.body); got != tt.want {
				t.Errorf("needsRender = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractTitle(t *testing.T) {
	if got := extractTitle(`<html><head><title> Kitchen Ideas </title></head></html>`); got != "Kitchen Ideas" {
		t.Errorf("extractTitle = %q", got)
	}
	if got := extractTitle(`<html><body><p>no title</p></body></html>`); got != "" {
		t.Errorf("extractTitle on missing title = %q", got)
	}
}

func TestIsTrackerDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"www.google-analytics.com", true},
		{"ct.pinterest.com", true},
		{"www.pinterest.com", false},
		{"i.pinimg.com", false},
	}
	for _, tt := range tests {
		if got := isTrackerDomain(tt.host); got != tt.want {
			t.Errorf("isTrackerDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
