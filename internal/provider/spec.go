// Package provider implements the pluggable mod-spec resolvers: modio,
// http, and file. Each provider turns a textual mod spec into a stable
// ProviderKey, resolves metadata/available versions, and fetches payload
// bytes into the content store. Dispatch is a small interface table, not
// an inheritance hierarchy.
package provider

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"mint/internal/mint"
)

// Kind identifies which built-in provider handles a spec.
type Kind string

const (
	KindModio Kind = "modio"
	KindHTTP  Kind = "http"
	KindFile  Kind = "file"
)

// modioURLRe matches https://mod.io/g/<game>/m/<slug>.
var modioURLRe = regexp.MustCompile(`^https?://mod\.io/g/([\w-]+)/m/([\w-]+)/?$`)

// modioNumericRe matches a bare "modio:<game>:<modID>" or "modio:<modID>"
// shorthand some UIs accept alongside the canonical URL form.
var modioNumericRe = regexp.MustCompile(`^modio:(?:(\d+):)?(\d+)$`)

// Spec is the parsed form of a user-entered mod spec string.
type Spec struct {
	Raw     string
	Kind    Kind
	Locator string // provider-specific: modio slug/id, URL, or local path
	Game    string // modio game slug, when known
}

// Parse classifies raw against the three built-in provider syntaxes, in
// fixed precedence order: modio URL, then any http(s) URL, then an
// absolute filesystem path to .pak/.zip.
func Parse(raw string) (Spec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Spec{}, mint.New(mint.KindSpecParse, "empty mod spec")
	}

	if m := modioURLRe.FindStringSubmatch(trimmed); m != nil {
		return Spec{Raw: raw, Kind: KindModio, Game: m[1], Locator: m[2]}, nil
	}
	if m := modioNumericRe.FindStringSubmatch(trimmed); m != nil {
		return Spec{Raw: raw, Kind: KindModio, Game: m[1], Locator: m[2]}, nil
	}

	if u, err := url.Parse(trimmed); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return Spec{Raw: raw, Kind: KindHTTP, Locator: trimmed}, nil
	}

	if filepath.IsAbs(trimmed) {
		ext := strings.ToLower(filepath.Ext(trimmed))
		if ext != ".pak" && ext != ".zip" {
			return Spec{}, mint.New(mint.KindSpecParse, "local path %q must end in .pak or .zip", trimmed)
		}
		return Spec{Raw: raw, Kind: KindFile, Locator: trimmed}, nil
	}

	return Spec{}, mint.New(mint.KindSpecParse, "unrecognized mod spec %q (expected mod.io URL, http(s) URL, or absolute .pak/.zip path)", raw)
}
