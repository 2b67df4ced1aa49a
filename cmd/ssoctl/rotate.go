package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appstore "campus-sso/internal/application/store"
	"campus-sso/internal/credential/models"
	credservice "campus-sso/internal/credential/service"
	keystore "campus-sso/internal/credential/store"
	"campus-sso/pkg/platform/tx"
)

func newRotateSecretCmd(envFile *string) *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "rotate-secret",
		Short: "Issue a new client secret for an application",
		Long: `Replace an application's client secret. The previous secret stops working
immediately and every API key bound to the application is revoked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, log, err := openDB(ctx, *envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			apps := appstore.NewPostgres(db)
			app, err := apps.FindByClientID(ctx, clientID)
			if err != nil {
				return fmt.Errorf("find application %s: %w", clientID, err)
			}
			svc := credservice.New(keystore.NewPostgres(db), apps,
				credservice.WithLogger(log),
				credservice.WithTxRunner(tx.NewSQLRunner(db)),
			)
			issued, err := svc.RotateClientSecret(ctx, app.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client_id=%s client_secret=%s revoked_api_keys=%d\n",
				issued.ClientID, issued.ClientSecret, issued.RevokedAPIKeys)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "Application client_id")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func newRotateKeyCmd(envFile *string) *cobra.Command {
	var clientID, name string

	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Revoke an application's API keys and issue a new one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, log, err := openDB(ctx, *envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			apps := appstore.NewPostgres(db)
			app, err := apps.FindByClientID(ctx, clientID)
			if err != nil {
				return fmt.Errorf("find application %s: %w", clientID, err)
			}
			svc := credservice.New(keystore.NewPostgres(db), apps,
				credservice.WithLogger(log),
				credservice.WithTxRunner(tx.NewSQLRunner(db)),
			)
			issued, err := svc.RotateKeys(ctx, models.ApplicationOwner(app.ID), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key_id=%s api_key=%s revoked=%d\n",
				issued.Key.ID, issued.Secret, issued.Revoked)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "Application client_id")
	cmd.Flags().StringVar(&name, "name", "", "Name for the new key")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}
