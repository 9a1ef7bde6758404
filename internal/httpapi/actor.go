package httpapi

import (
	"net/http"
	"strings"

	"github.com/praetor-io/praetor/internal/shared"
)

// Actor headers set by the upstream authenticating proxy. The core
// never authenticates; it trusts the caller-supplied request context.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderActorID    = "X-Actor-ID"
	HeaderActorRoles = "X-Actor-Roles"
)

// ActorContext mirrors the caller's identity into the request context
// for the mutation endpoints.
func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if actorID == "" {
			next.ServeHTTP(w, r)
			return
		}
		var actorRoles []string
		for _, role := range strings.Split(r.Header.Get(HeaderActorRoles), ",") {
			if role = strings.TrimSpace(role); role != "" {
				actorRoles = append(actorRoles, role)
			}
		}
		sec := shared.NewSecurityContext(
			strings.TrimSpace(r.Header.Get(HeaderTenantID)),
			actorID,
			actorRoles,
			correlationID(r),
		)
		next.ServeHTTP(w, r.WithContext(shared.WithSecurityContext(r.Context(), sec)))
	})
}
