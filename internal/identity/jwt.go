package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the JWT claims for viewdeck sessions. The role claim is
// written at sign-in/redemption time from the derivation rule, so a session
// observed by the rest of the application already carries it.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
	jwt.RegisteredClaims
}

// CreateToken creates a new JWT session token for the given identity.
// The token is signed with HS256 and expires after sessionDays.
func CreateToken(ident Identity, secret string, sessionDays int) (string, error) {
	expiresAt := time.Now().Add(time.Duration(sessionDays) * 24 * time.Hour)

	claims := &Claims{
		UserID: ident.UserID,
		Email:  ident.Email,
		Role:   ident.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
// Returns an error if the token is invalid, expired, or malformed
func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
