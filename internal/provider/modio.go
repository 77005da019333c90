package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"mint/internal/mint"
)

// maxModioResponseBytes caps JSON response reads so a misbehaving server
// cannot balloon memory.
const maxModioResponseBytes = 10 * 1024 * 1024

// ModioProvider recognizes mod.io URLs and numeric id forms, authenticates
// with an OAuth bearer token, and paces requests with a client-side rate
// limiter plus bounded exponential backoff on 429 responses.
type ModioProvider struct {
	baseURL  string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
	maxRetry uint64
}

// NewModioProvider builds a provider bound to token. A zero-value token
// means resolve/fetch will fail with KindAuthMissing the first time a
// modio spec is actually used (construction itself never requires it, so
// a registry with no modio specs in play never needs one).
func NewModioProvider(token string) *ModioProvider {
	return &ModioProvider{
		baseURL: "https://api.mod.io/v1",
		token:   token,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          50,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
			},
		},
		// mod.io's default tier allows roughly 2 req/s sustained; stay
		// comfortably under that rather than relying on 429s alone.
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
		maxRetry: 5,
	}
}

func (m *ModioProvider) Kind() Kind { return KindModio }

func (m *ModioProvider) Match(raw string) (Spec, bool) {
	trimmed := strings.TrimSpace(raw)
	if match := modioURLRe.FindStringSubmatch(trimmed); match != nil {
		return Spec{Raw: raw, Kind: KindModio, Game: match[1], Locator: match[2]}, true
	}
	if match := modioNumericRe.FindStringSubmatch(trimmed); match != nil {
		return Spec{Raw: raw, Kind: KindModio, Game: match[1], Locator: match[2]}, true
	}
	return Spec{}, false
}

type modioFileInfo struct {
	ID          int64  `json:"id"`
	Version     string `json:"version"`
	Filesize    int64  `json:"filesize"`
	DownloadURL string `json:"download_binary_url"`
}

type modioModResponse struct {
	ID      int64         `json:"id"`
	NameID  string        `json:"name_id"`
	Name    string        `json:"name"`
	Visible int           `json:"visible"` // 0 = hidden (treated as deleted)
	Modfile modioFileInfo `json:"modfile"`
	Tags    []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

// Resolve fetches /games/{game}/mods/{id-or-name} (mod.io accepts both
// numeric ids and name_ids interchangeably in this slot). If networking
// fails entirely, callers are expected to fall back to a cached
// ResolvedMod; that fallback lives in internal/store, not here.
func (m *ModioProvider) Resolve(ctx context.Context, spec Spec) (ResolvedMod, error) {
	if m.token == "" {
		return ResolvedMod{}, &mint.Error{Kind: mint.KindAuthMissing, Message: "modio token required to resolve " + spec.Raw}
	}

	game := spec.Game
	if game == "" {
		game = "drg" // Deep Rock Galactic's mod.io game slug; spec targets this title exclusively.
	}

	apiURL := fmt.Sprintf("%s/games/%s/mods/%s", m.baseURL, game, spec.Locator)
	body, err := m.doWithRetry(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return ResolvedMod{}, err
	}

	var parsed modioModResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ResolvedMod{}, mint.Wrap(mint.KindIO, err, "decoding modio response for %q", spec.Raw)
	}

	labels := make([]string, 0, len(parsed.Tags))
	for _, t := range parsed.Tags {
		labels = append(labels, t.Name)
	}

	key := fmt.Sprintf("modio:%s:%d", game, parsed.ID)
	versions := m.resolveVersionHistory(ctx, game, parsed.ID, parsed.Modfile)

	return ResolvedMod{
		ProviderKey: key,
		Kind:        KindModio,
		DisplayName: parsed.Name,
		Labels:      labels,
		Versions:    versions,
		Current:     "latest",
		Deprecated:  parsed.Visible == 0,
	}, nil
}

type modioFilesResponse struct {
	Data []modioFileInfo `json:"data"`
}

// resolveVersionHistory fetches a mod's full file history so pinned-version
// installs can target any prior release, not just the
// current one. Versions are ordered oldest-to-newest by semver so
// ResolvedMod.Latest returns the true latest rather than the API's
// arbitrary listing order; entries whose version string isn't valid semver
// sort before every valid one and otherwise keep the API's relative order.
// If the history endpoint is unreachable, Resolve still succeeds with just
// the mod's current Modfile, matching the previous single-version behavior.
func (m *ModioProvider) resolveVersionHistory(ctx context.Context, game string, modID int64, current modioFileInfo) []ModRelease {
	url := fmt.Sprintf("%s/games/%s/mods/%d/files", m.baseURL, game, modID)
	body, err := m.doWithRetry(ctx, http.MethodGet, url, nil)
	if err != nil {
		if current.ID == 0 {
			return nil
		}
		return []ModRelease{{Version: current.Version, DownloadURL: current.DownloadURL, Size: current.Filesize}}
	}

	var parsed modioFilesResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Data) == 0 {
		if current.ID == 0 {
			return nil
		}
		return []ModRelease{{Version: current.Version, DownloadURL: current.DownloadURL, Size: current.Filesize}}
	}

	versions := make([]ModRelease, 0, len(parsed.Data))
	for _, f := range parsed.Data {
		versions = append(versions, ModRelease{Version: f.Version, DownloadURL: f.DownloadURL, Size: f.Filesize})
	}
	sortReleasesBySemver(versions)
	return versions
}

// sortReleasesBySemver orders releases ascending by semantic version,
// stably, so Latest (Versions[len-1]) is the true latest rather than
// whatever order the API happened to return.
func sortReleasesBySemver(versions []ModRelease) {
	type keyed struct {
		rel    ModRelease
		parsed semver.Version
		valid  bool
	}
	keys := make([]keyed, len(versions))
	for i, v := range versions {
		keys[i].rel = v
		if sv, err := semver.ParseTolerant(v.Version); err == nil {
			keys[i].parsed = sv
			keys[i].valid = true
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].valid != keys[j].valid {
			return !keys[i].valid // unparseable versions sort first
		}
		if !keys[i].valid {
			return false // both unparseable: keep relative order
		}
		return keys[i].parsed.LT(keys[j].parsed)
	})
	for i, k := range keys {
		versions[i] = k.rel
	}
}

func (m *ModioProvider) Fetch(ctx context.Context, mod ResolvedMod, version string) (FetchResult, error) {
	if m.token == "" {
		return FetchResult{}, &mint.Error{Kind: mint.KindAuthMissing, Message: "modio token required to fetch " + mod.DisplayName}
	}

	rel, ok := releaseFor(mod, version)
	if !ok {
		return FetchResult{}, mint.New(mint.KindProviderUnavailable, "version %q not found for %q", version, mod.DisplayName)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return FetchResult{}, mint.Cancelled("modio rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rel.DownloadURL, nil)
	if err != nil {
		return FetchResult{}, mint.Wrap(mint.KindIO, err, "building download request")
	}
	req.Header.Set("Authorization", "Bearer "+m.token)

	resp, err := m.client.Do(req)
	if err != nil {
		return FetchResult{}, mint.Wrap(mint.KindProviderUnavailable, err, "downloading %q", mod.DisplayName)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return FetchResult{}, classifyModioStatus(resp.StatusCode, mod.DisplayName)
	}

	return FetchResult{Media: MediaArchive, Body: resp.Body, Size: resp.ContentLength}, nil
}

func (m *ModioProvider) CopyURL(spec Spec) string {
	game := spec.Game
	if game == "" {
		game = "drg"
	}
	return fmt.Sprintf("https://mod.io/g/%s/m/%s", game, spec.Locator)
}

// doWithRetry performs an authenticated request, retrying rate-limited
// (429) responses with exponential backoff and jitter, up to m.maxRetry
// retries after the first attempt before giving up.
func (m *ModioProvider) doWithRetry(ctx context.Context, method, url string, reqBody io.Reader) ([]byte, error) {
	backoff := retry.WithJitter(200*time.Millisecond, retry.WithMaxRetries(m.maxRetry, retry.NewExponential(500*time.Millisecond)))

	var result []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.limiter.Wait(ctx); err != nil {
			return mint.Cancelled("modio rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return retry.RetryableError(err) // construction errors are not expected to be transient, but never loop forever either way
		}
		req.Header.Set("Authorization", "Bearer "+m.token)
		req.Header.Set("Accept", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			return retry.RetryableError(mint.Wrap(mint.KindProviderUnavailable, err, "%s %s", method, url))
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			limited := io.LimitReader(resp.Body, maxModioResponseBytes)
			body, err := io.ReadAll(limited)
			if err != nil {
				return mint.Wrap(mint.KindIO, err, "reading modio response body")
			}
			result = body
			return nil
		case http.StatusTooManyRequests:
			wait := retryAfterDuration(resp.Header.Get("Retry-After"))
			if wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
			return retry.RetryableError(mint.New(mint.KindRateLimited, "modio rate limit hit for %s", url))
		default:
			return classifyModioStatus(resp.StatusCode, url)
		}
	})

	return result, err
}

func retryAfterDuration(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// classifyModioStatus maps mod.io's HTTP status codes onto the taxonomy's
// more specific kinds: 403/404 mean the mod was renamed or deleted, 401
// means the token was rejected.
func classifyModioStatus(code int, ctx string) error {
	switch code {
	case http.StatusUnauthorized:
		return &mint.Error{Kind: mint.KindAuthRejected, Code: code, Message: "modio token rejected for " + ctx}
	case http.StatusForbidden, http.StatusNotFound:
		return mint.HTTPStatus(code, "modio mod unavailable (renamed or deleted): %s", ctx)
	default:
		return mint.HTTPStatus(code, "modio request failed: %s", ctx)
	}
}
