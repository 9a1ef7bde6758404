package shared

// TenantOwned is implemented by every entity carrying a tenant id.
type TenantOwned interface {
	OwnerTenant() string
}

// ValidateTenant enforces the isolation invariant: an entity whose
// tenant differs from the active security context must never be acted
// on or returned. Cross-tenant references are forbidden.
func ValidateTenant(sec SecurityContext, owned TenantOwned) error {
	if sec.System() {
		return nil
	}
	if owned.OwnerTenant() != sec.TenantID {
		return NewAuthorizationError(CodeTenantMismatch, "entity belongs to another tenant")
	}
	return nil
}
