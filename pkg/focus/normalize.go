package focus

import "strings"

var platformSuffixes = []string{".exe", ".app"}

// Normalize trims whitespace, strips a trailing executable or bundle suffix and lower-cases the result.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range platformSuffixes {
		if strings.HasSuffix(n, suffix) {
			n = strings.TrimSpace(strings.TrimSuffix(n, suffix))
			break
		}
	}
	return n
}

// NamesMatch reports whether a and b refer to the same application: equal after
// normalization, or one normalized name contains the other. Empty names never match.
func NamesMatch(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// ExactMatch reports whether a and b are equal after normalization.
func ExactMatch(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
