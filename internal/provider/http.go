package provider

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"mint/internal/mint"
)

// HTTPProvider resolves arbitrary http(s) URLs that don't match the modio
// pattern. Identity is the URL string; version is the response's ETag or
// Last-Modified header.
type HTTPProvider struct {
	client *http.Client
}

// NewHTTPProvider builds an HTTPProvider with conservative transport
// timeouts; a stalled server fails the request rather than hanging it.
func NewHTTPProvider() *HTTPProvider {
	return &HTTPProvider{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
			},
		},
	}
}

func (h *HTTPProvider) Kind() Kind { return KindHTTP }

func (h *HTTPProvider) Match(raw string) (Spec, bool) {
	trimmed := strings.TrimSpace(raw)
	if modioURLRe.MatchString(trimmed) {
		return Spec{}, false
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return Spec{Raw: raw, Kind: KindHTTP, Locator: trimmed}, true
	}
	return Spec{}, false
}

func (h *HTTPProvider) Resolve(ctx context.Context, spec Spec) (ResolvedMod, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, spec.Locator, nil)
	if err != nil {
		return ResolvedMod{}, mint.Wrap(mint.KindSpecParse, err, "building HEAD request for %q", spec.Locator)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return ResolvedMod{}, mint.Wrap(mint.KindProviderUnavailable, err, "HEAD %q", spec.Locator)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMethodNotAllowed {
		return ResolvedMod{}, mint.HTTPStatus(resp.StatusCode, "HEAD %q", spec.Locator)
	}

	version := versionFromHeaders(resp.Header)
	size := resp.ContentLength

	return ResolvedMod{
		ProviderKey: "http:" + spec.Locator,
		Kind:        KindHTTP,
		DisplayName: displayNameFromURL(spec.Locator),
		Versions:    []ModRelease{{Version: version, DownloadURL: spec.Locator, Size: size}},
		Current:     version,
	}, nil
}

// versionFromHeaders derives a stable version token from ETag or
// Last-Modified. An empty result gives the mod a constant empty version,
// so once its payload is cached it is not fetched again: a cache update
// re-resolves the headers but does not refetch the payload.
func versionFromHeaders(h http.Header) string {
	if etag := h.Get("ETag"); etag != "" {
		return strings.Trim(etag, `"`)
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		return lm
	}
	return ""
}

func displayNameFromURL(raw string) string {
	idx := strings.LastIndexByte(raw, '/')
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

func (h *HTTPProvider) Fetch(ctx context.Context, mod ResolvedMod, version string) (FetchResult, error) {
	rel, ok := releaseFor(mod, version)
	if !ok {
		return FetchResult{}, mint.New(mint.KindProviderUnavailable, "version %q not found for %q", version, mod.DisplayName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rel.DownloadURL, nil)
	if err != nil {
		return FetchResult{}, mint.Wrap(mint.KindIO, err, "building GET request for %q", rel.DownloadURL)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return FetchResult{}, mint.Wrap(mint.KindProviderUnavailable, err, "GET %q", rel.DownloadURL)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return FetchResult{}, mint.HTTPStatus(resp.StatusCode, "GET %q", rel.DownloadURL)
	}

	media := MediaRawPak
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "zip") {
		media = MediaArchive
	} else if strings.HasSuffix(strings.ToLower(rel.DownloadURL), ".zip") {
		media = MediaArchive
	}

	size := resp.ContentLength
	if size == 0 {
		size = -1
	}

	return FetchResult{Media: media, Body: resp.Body, Size: size}, nil
}

func (h *HTTPProvider) CopyURL(spec Spec) string {
	return spec.Locator
}
