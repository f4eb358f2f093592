package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Claims carries the actor attributes the permission gate keys on, so request
// handling never needs a database round trip to rebuild the actor.
type Claims struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// JWTService mints and validates HS256 session tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewJWTService(signingKey string, ttl time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     "custodia",
		ttl:        ttl,
	}
}

// IssueToken mints a session token for the actor.
func (s *JWTService) IssueToken(actor domain.Actor) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:   actor.Username,
		Role:       string(actor.Role),
		Department: actor.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.AccountID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken parses a session token back into an actor. Satisfies the auth
// middleware's TokenValidator.
func (s *JWTService) ValidateToken(tokenString string) (domain.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	accountID, err := domain.ParseAccountID(claims.Subject)
	if err != nil {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return domain.Actor{
		AccountID:  accountID,
		Username:   claims.Username,
		Role:       role,
		Department: claims.Department,
		Active:     true,
	}, nil
}
