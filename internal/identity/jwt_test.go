package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCreateToken_AndValidateToken(t *testing.T) {
	ident := Identity{UserID: uuid.New(), Email: "user@example.com", Role: RoleAdmin}
	secret := "test-secret"

	token, err := CreateToken(ident, secret, 7)
	require.NoError(t, err)

	claims, err := ValidateToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, ident.UserID, claims.UserID)
	require.Equal(t, ident.Email, claims.Email)
	require.Equal(t, RoleAdmin, claims.Role)
	require.Equal(t, ident.UserID.String(), claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	ident := Identity{UserID: uuid.New(), Email: "user@example.com", Role: RoleViewer}
	token, err := CreateToken(ident, "secret-a", 7)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret-b")
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	ident := Identity{UserID: uuid.New(), Email: "user@example.com", Role: RoleViewer}
	token, err := CreateToken(ident, "secret", -1)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret")
	require.Error(t, err)
}
