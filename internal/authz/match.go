package authz

import "strings"

// Match reports whether a permission pattern covers the requested
// permission string. A pattern containing the wildcard token `*`
// matches with each wildcard expanding to any characters; patterns
// without a wildcard require exact equality.
func Match(pattern, perm string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == perm
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(perm, parts[0]) {
		return false
	}
	remainder := perm[len(parts[0]):]
	for _, mid := range parts[1 : len(parts)-1] {
		if mid == "" {
			continue
		}
		idx := strings.Index(remainder, mid)
		if idx < 0 {
			return false
		}
		remainder = remainder[idx+len(mid):]
	}
	return strings.HasSuffix(remainder, parts[len(parts)-1])
}
