package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	appmodels "campus-sso/internal/application/models"
	appstore "campus-sso/internal/application/store"
	"campus-sso/internal/auth/models"
	userstore "campus-sso/internal/auth/store/user"
	consentservice "campus-sso/internal/consent/service"
	consentstore "campus-sso/internal/consent/store"
	id "campus-sso/pkg/domain"
)

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type appFinder interface {
	FindByClientID(ctx context.Context, clientID string) (*appmodels.Application, error)
}

type consentRevoker interface {
	Revoke(ctx context.Context, userID id.UserID, appID id.ApplicationID) error
}

// revokeConsent resolves the user and application and marks their consent
// revoked. The next authorization for that pair asks again.
func revokeConsent(ctx context.Context, users userFinder, apps appFinder, consents consentRevoker, email, clientID string) error {
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	app, err := apps.FindByClientID(ctx, clientID)
	if err != nil {
		return fmt.Errorf("application %s: %w", clientID, err)
	}
	return consents.Revoke(ctx, user.ID, app.ID)
}

func newRevokeConsentCmd(envFile *string) *cobra.Command {
	var email, clientID string

	cmd := &cobra.Command{
		Use:   "revoke-consent",
		Short: "Revoke the consent a user gave an application",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, log, err := openDB(ctx, *envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			consents := consentservice.New(consentstore.NewPostgres(db), consentservice.WithLogger(log))
			return revokeConsent(ctx, userstore.NewPostgres(db), appstore.NewPostgres(db), consents, email, clientID)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Application client_id")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}
