package shared

import "strings"

// Core platform permissions.
const (
	PermRolesAssign = "roles.assign"
	PermRolesRevoke = "roles.revoke"
	PermRolesView   = "roles.view"

	PermGrantsIssue  = "grants.issue"
	PermGrantsRevoke = "grants.revoke"
)

// Resource types guarding core mutations.
const (
	ResourceTypeRole  = "role"
	ResourceTypeGrant = "grant"
)

// CoreScopes lists all permissions owned by the authorization core.
func CoreScopes() []string {
	return []string{
		PermRolesAssign,
		PermRolesRevoke,
		PermRolesView,
		PermGrantsIssue,
		PermGrantsRevoke,
	}
}

// sensitivePatterns are permission patterns whose checks are always
// audited, granted or denied.
var sensitivePatterns = []string{
	"admin:*",
	"*:delete",
	"user:*",
	"role:*",
	"permission:*",
	"tenant:*",
	"system:*",
}

// IsSensitivePermission reports whether perm falls under a pattern that
// mandates unconditional auditing.
func IsSensitivePermission(perm string) bool {
	for _, pattern := range sensitivePatterns {
		if matchSensitive(pattern, perm) {
			return true
		}
	}
	return false
}

func matchSensitive(pattern, perm string) bool {
	switch {
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(perm, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(perm, pattern[:len(pattern)-1])
	default:
		return pattern == perm
	}
}
