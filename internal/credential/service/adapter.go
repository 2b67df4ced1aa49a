package service

import (
	"context"

	"campus-sso/pkg/platform/middleware/apikey"
)

// PrincipalAdapter exposes the vault to the API key middleware.
type PrincipalAdapter struct {
	service *Service
}

func NewPrincipalAdapter(service *Service) *PrincipalAdapter {
	return &PrincipalAdapter{service: service}
}

func (a *PrincipalAdapter) AuthenticateKey(ctx context.Context, raw string) (*apikey.Principal, error) {
	key, err := a.service.AuthenticateKey(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &apikey.Principal{
		KeyID:         key.ID,
		UserID:        key.UserID,
		ApplicationID: key.ApplicationID,
	}, nil
}
