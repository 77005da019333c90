package integrator

import "sort"

// claim is one internal path's resolved owner after cross-pak merge.
type claim struct {
	winnerIdx int // index into the ModInput slice
	entry     normalizedEntry
}

// resolveConflicts walks perMod (already normalized, one slice per
// ModInput, same order/index as the ModInput list) from highest to lowest
// precedence and claims each lower-cased path for its first (highest
// precedence) contributor.
func resolveConflicts(inputs []ModInput, perMod [][]normalizedEntry) (map[string]claim, []Conflict, []Advisory) {
	claims := make(map[string]claim)
	conflictsByPath := make(map[string]*Conflict)
	var advisories []Advisory

	for idx, entries := range perMod {
		for _, ne := range entries {
			existing, ok := claims[ne.lower]
			if !ok {
				claims[ne.lower] = claim{winnerIdx: idx, entry: ne}
				continue
			}

			winnerName := inputs[existing.winnerIdx].Name
			loserName := inputs[idx].Name

			c, ok := conflictsByPath[ne.lower]
			if !ok {
				c = &Conflict{Path: existing.entry.path, Winner: winnerName}
				conflictsByPath[ne.lower] = c
			}
			c.Losers = append(c.Losers, loserName)

			if existing.entry.path != ne.path {
				advisories = append(advisories, Advisory{
					Kind: AdvisoryCaseCollision,
					Mod:  loserName,
					Path: ne.path,
					Note: "collides with " + winnerName + "'s " + existing.entry.path + " (case-only difference)",
				})
			}
		}
	}

	conflicts := make([]Conflict, 0, len(conflictsByPath))
	for _, c := range conflictsByPath {
		conflicts = append(conflicts, *c)
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })

	return claims, conflicts, advisories
}
