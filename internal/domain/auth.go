/**
 * @description
 * This file defines the AuthContext value produced by the access guard.
 * The marketplace's auth layer verifies credentials upstream; this service
 * trusts the verified identity and role it hands over and never revalidates
 * credentials itself.
 */

package domain

// Roles recognised by the funding engine.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AuthContext is the verified identity attached to a request. A zero value
// means the request is anonymous.
type AuthContext struct {
	Email         string
	Role          string
	Authenticated bool
}

// IsAdmin reports whether the caller holds the administrator role.
func (a AuthContext) IsAdmin() bool {
	return a.Authenticated && a.Role == RoleAdmin
}

// Owns reports whether the caller is the authenticated owner of the given
// identity.
func (a AuthContext) Owns(ownerEmail string) bool {
	return a.Authenticated && a.Email == ownerEmail
}
