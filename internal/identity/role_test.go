package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveRole(t *testing.T) {
	cfg := RoleConfig{
		AdminEmails: []string{"owner@example.com"},
		AdminDomain: "corp.example.com",
	}

	tests := []struct {
		name     string
		metadata map[string]interface{}
		email    string
		want     Role
	}{
		{"metadata admin", map[string]interface{}{"role": "admin"}, "anyone@example.com", RoleAdmin},
		{"metadata viewer", map[string]interface{}{"role": "viewer"}, "anyone@example.com", RoleViewer},
		{"allow-listed email", nil, "owner@example.com", RoleAdmin},
		{"allow-listed email case-insensitive", nil, " Owner@Example.com ", RoleAdmin},
		{"admin domain suffix", nil, "dev@corp.example.com", RoleAdmin},
		{"similar but wrong domain", nil, "dev@notcorp.example.com", RoleViewer},
		{"plain viewer", map[string]interface{}{}, "viewer@example.com", RoleViewer},
		{"bogus metadata role ignored", map[string]interface{}{"role": 42}, "viewer@example.com", RoleViewer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DeriveRole(tt.metadata, tt.email, cfg))
		})
	}
}

func TestDeriveRole_NoDomainConfigured(t *testing.T) {
	require.Equal(t, RoleViewer, DeriveRole(nil, "dev@corp.example.com", RoleConfig{}))
}

func TestRoleIsValid(t *testing.T) {
	require.True(t, RoleAdmin.IsValid())
	require.True(t, RoleViewer.IsValid())
	require.False(t, Role("owner").IsValid())
	require.False(t, Role("").IsValid())
}
