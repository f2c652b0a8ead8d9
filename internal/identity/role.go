package identity

import "strings"

// Role is the coarse authorization level derived from verified claims.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// IsValid reports whether the role is one of the closed set.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// RoleConfig carries the configured admin allow-lists.
type RoleConfig struct {
	AdminEmails []string
	AdminDomain string
}

// DeriveRole computes the caller's role from server-verified inputs. It is
// the single source of role decisions: an explicit admin role in the user's
// metadata, an allow-listed email, or an allow-listed domain suffix resolve
// to admin; everything else is viewer. Client-persisted flags never reach
// this function.
func DeriveRole(metadata map[string]interface{}, email string, cfg RoleConfig) Role {
	if role, ok := metadata["role"].(string); ok && Role(role) == RoleAdmin {
		return RoleAdmin
	}

	email = strings.ToLower(strings.TrimSpace(email))
	for _, allowed := range cfg.AdminEmails {
		if email == allowed {
			return RoleAdmin
		}
	}

	if cfg.AdminDomain != "" && strings.HasSuffix(email, "@"+cfg.AdminDomain) {
		return RoleAdmin
	}

	return RoleViewer
}
