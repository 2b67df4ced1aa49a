package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
)

// TokenTypeAccess is the only token type this service signs.
const TokenTypeAccess = "access"

// Claims represents the JWT claims for our access tokens. Subject is the
// user id and the single audience entry is the application id (or the
// portal audience for first-party logins).
type Claims struct {
	Scopes []string `json:"scopes"`
	Type   string   `json:"type"`
	jwt.RegisteredClaims
}

// AudienceValue returns the first audience entry.
func (c *Claims) AudienceValue() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

type Option func(*JWTService)

// WithClock overrides the time source used when validating expiry.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

func NewJWTService(signingKey string, issuer string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateAccessToken signs an access token issued at now. The returned
// claims carry the generated jti.
func (s *JWTService) GenerateAccessToken(
	userID id.UserID,
	audience string,
	scopes []string,
	now time.Time,
	expiresIn time.Duration) (string, *Claims, error) {
	if len(s.signingKey) == 0 {
		return "", nil, dErrors.New(dErrors.CodeInternal, "signing key unavailable")
	}
	claims := &Claims{
		Scopes: scopes,
		Type:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{audience},
			ID:        uuid.NewString(),
		},
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, err
	}
	return signedToken, claims, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Type != TokenTypeAccess {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token type")
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}
