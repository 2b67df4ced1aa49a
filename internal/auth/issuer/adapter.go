package issuer

import (
	"context"

	jwttoken "campus-sso/internal/jwt_token"
	authmw "campus-sso/pkg/platform/middleware/auth"
)

// MiddlewareVerifier exposes the issuer to the bearer-auth middleware.
type MiddlewareVerifier struct {
	issuer *Issuer
}

func NewMiddlewareVerifier(issuer *Issuer) *MiddlewareVerifier {
	return &MiddlewareVerifier{issuer: issuer}
}

func (v *MiddlewareVerifier) VerifyAccess(ctx context.Context, token string) (*authmw.JWTClaims, error) {
	claims, err := v.issuer.VerifyAccess(ctx, token)
	if err != nil {
		return nil, err
	}
	return jwttoken.ToMiddlewareClaims(claims), nil
}
