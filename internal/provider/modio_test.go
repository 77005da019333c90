package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mint/internal/mint"
)

func newTestModio(t *testing.T, handler http.Handler) *ModioProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := NewModioProvider("test-token")
	m.baseURL = srv.URL
	m.client = srv.Client()
	return m
}

const modJSON = `{"id":12345,"name_id":"test-mod","name":"Test Mod","visible":1,` +
	`"modfile":{"id":1,"version":"1.1.0","filesize":3,"download_binary_url":"https://example.test/dl/1"},` +
	`"tags":[{"name":"Audio"}]}`

const filesJSON = `{"data":[` +
	`{"id":1,"version":"1.1.0","filesize":3,"download_binary_url":"https://example.test/dl/1"},` +
	`{"id":2,"version":"1.10.0","filesize":4,"download_binary_url":"https://example.test/dl/2"},` +
	`{"id":3,"version":"1.2.0","filesize":5,"download_binary_url":"https://example.test/dl/3"}]}`

func TestResolveOrdersVersionsBySemver(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/games/drg/mods/12345", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(modJSON))
	})
	mux.HandleFunc("/games/drg/mods/12345/files", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(filesJSON))
	})

	m := newTestModio(t, mux)
	mod, err := m.Resolve(context.Background(), Spec{Raw: "modio:12345", Kind: KindModio, Locator: "12345"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mod.DisplayName != "Test Mod" {
		t.Fatalf("DisplayName = %q, want Test Mod", mod.DisplayName)
	}
	if mod.ProviderKey != "modio:drg:12345" {
		t.Fatalf("ProviderKey = %q", mod.ProviderKey)
	}
	latest, ok := mod.Latest()
	if !ok {
		t.Fatal("no versions resolved")
	}
	// 1.10.0 > 1.2.0 semantically even though it sorts earlier as a string.
	if latest.Version != "1.10.0" {
		t.Fatalf("latest = %q, want 1.10.0", latest.Version)
	}
	if len(mod.Labels) != 1 || mod.Labels[0] != "Audio" {
		t.Fatalf("Labels = %v", mod.Labels)
	}
}

func TestResolveRetriesRateLimitThenSucceeds(t *testing.T) {
	var modCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/games/drg/mods/12345", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&modCalls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(modJSON))
	})
	mux.HandleFunc("/games/drg/mods/12345/files", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(filesJSON))
	})

	m := newTestModio(t, mux)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mod, err := m.Resolve(ctx, Spec{Raw: "modio:12345", Kind: KindModio, Locator: "12345"})
	if err != nil {
		t.Fatalf("Resolve after 429: %v", err)
	}
	if got := atomic.LoadInt32(&modCalls); got < 2 {
		t.Fatalf("mod endpoint calls = %d, want a retry after the 429", got)
	}
	if mod.DisplayName != "Test Mod" {
		t.Fatalf("DisplayName = %q after retry", mod.DisplayName)
	}
}

func TestResolveClassifiesDeletedMod(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	m := newTestModio(t, mux)
	_, err := m.Resolve(context.Background(), Spec{Raw: "modio:404", Kind: KindModio, Locator: "404"})
	if err == nil {
		t.Fatal("Resolve succeeded for a deleted mod, want error")
	}
	if mint.KindOf(err) != mint.KindHTTPStatus {
		t.Fatalf("Kind = %v, want HttpStatus", mint.KindOf(err))
	}
}

func TestResolveClassifiesRejectedToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	m := newTestModio(t, mux)
	_, err := m.Resolve(context.Background(), Spec{Raw: "modio:1", Kind: KindModio, Locator: "1"})
	if mint.KindOf(err) != mint.KindAuthRejected {
		t.Fatalf("Kind = %v, want AuthRejected", mint.KindOf(err))
	}
}

func TestResolveRequiresToken(t *testing.T) {
	m := NewModioProvider("")
	_, err := m.Resolve(context.Background(), Spec{Raw: "modio:1", Kind: KindModio, Locator: "1"})
	if mint.KindOf(err) != mint.KindAuthMissing {
		t.Fatalf("Kind = %v, want AuthMissing", mint.KindOf(err))
	}
}

func TestRetryAfterDuration(t *testing.T) {
	if got := retryAfterDuration(""); got != 0 {
		t.Fatalf("empty header = %v, want 0", got)
	}
	if got := retryAfterDuration("2"); got != 2*time.Second {
		t.Fatalf("seconds form = %v, want 2s", got)
	}
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := retryAfterDuration(past); got != 0 {
		t.Fatalf("past HTTP-date = %v, want 0", got)
	}
}
