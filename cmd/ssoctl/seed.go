package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appstore "campus-sso/internal/application/store"
	userstore "campus-sso/internal/auth/store/user"
	"campus-sso/internal/seed"
)

func newSeedCmd(envFile *string) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users and applications from a YAML file",
		Long: `Create the users and relying-party applications listed in a YAML file.
Entries that already exist are skipped. Client secrets generated for new
applications are printed once and cannot be recovered afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := seed.ParseFile(path)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, log, err := openDB(ctx, *envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			issued, err := seed.Apply(ctx, doc, userstore.NewPostgres(db), appstore.NewPostgres(db), time.Now())
			if err != nil {
				return err
			}
			log.Info("seed applied", "users", len(doc.Users), "generated_secrets", len(issued))
			for _, c := range issued {
				fmt.Fprintf(cmd.OutOrStdout(), "client_id=%s client_secret=%s\n", c.ClientID, c.ClientSecret)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "seed.yaml", "Seed file")
	return cmd
}
