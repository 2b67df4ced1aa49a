package jwttoken

import (
	authmw "campus-sso/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) *authmw.JWTClaims {
	audience := claims.AudienceValue()
	out := &authmw.JWTClaims{
		UserID:        claims.Subject,
		Audience:      audience,
		ApplicationID: audience,
		JTI:           claims.ID, // JWT ID for revocation tracking
		Scopes:        claims.Scopes,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out
}
