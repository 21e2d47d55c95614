package resolve

import "strings"

// SlotMatcher normalizes an extracted entity slot name onto one of a
// capability's declared slot names. Fuzzy matching proper is an external
// concern; implementations can wrap any matcher behind this interface.
type SlotMatcher interface {
	// Match returns the declared slot the entity slot maps onto, and whether
	// a mapping was found. declared preserves the descriptor's order, which
	// the matcher must respect for determinism.
	Match(entitySlot string, declared []string) (string, bool)
}

// NormalizingMatcher is the default SlotMatcher. It canonicalizes slot names
// (lowercase, separators stripped) and accepts exact canonical matches,
// singular/plural variants, and containment ("time" onto "datetime").
type NormalizingMatcher struct{}

// Match implements SlotMatcher.
func (NormalizingMatcher) Match(entitySlot string, declared []string) (string, bool) {
	want := canonicalSlot(entitySlot)
	if want == "" {
		return "", false
	}

	// Pass 1: exact canonical match.
	for _, d := range declared {
		if canonicalSlot(d) == want {
			return d, true
		}
	}

	// Pass 2: trailing-s variants ("files" -> "file").
	for _, d := range declared {
		have := canonicalSlot(d)
		if strings.TrimSuffix(have, "s") == strings.TrimSuffix(want, "s") {
			return d, true
		}
	}

	// Pass 3: containment, longest-side wins ("time" -> "datetime").
	for _, d := range declared {
		have := canonicalSlot(d)
		if len(want) >= 3 && strings.Contains(have, want) {
			return d, true
		}
		if len(have) >= 3 && strings.Contains(want, have) {
			return d, true
		}
	}

	return "", false
}

// canonicalSlot lowercases a slot name and strips separators so that
// "file_name", "fileName" and "file name" compare equal.
func canonicalSlot(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
