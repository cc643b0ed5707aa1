package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTTLMinutes = 15

// Role is an authorisation tier.
type Role string

// RoleAdmin is granted by a successful admin passcode login. It allows
// every operator action.
const RoleAdmin Role = "admin"

// Claims extends the registered JWT claims with the operator role.
type Claims struct {
	jwt.RegisteredClaims
	Role Role   `json:"role"`
	Site string `json:"site,omitempty"`
}

// Token is a signed access token and its lifetime.
type Token struct {
	Value     string
	ExpiresIn time.Duration
}

// GenerateToken signs an access token for subject.
//
// Parameters:
//   - subject: Who logged in, e.g. "operator" or the client address
//   - role: Granted role
//   - site: Site ID copied into the token
//   - secret: HMAC signing secret
//   - ttlMinutes: Lifetime; zero or negative means 15 minutes
func GenerateToken(subject string, role Role, site, secret string, ttlMinutes int) (Token, error) {
	if ttlMinutes <= 0 {
		ttlMinutes = defaultTTLMinutes
	}
	ttl := time.Duration(ttlMinutes) * time.Minute
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
		Site: site,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return Token{}, fmt.Errorf("signing access token: %w", err)
	}
	return Token{Value: signed, ExpiresIn: ttl}, nil
}

// ParseToken validates signature, algorithm and expiry and returns the
// claims. Tokens without a subject or role are rejected.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}
	return claims, nil
}
