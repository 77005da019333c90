package pak

import "strings"

// toLowerPath normalizes an internal path for conflict keying. Unreal
// mounts are case-preserving but case-colliding, so the lowercase form is
// the only thing safe to use as a map key across mods.
func toLowerPath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
}
