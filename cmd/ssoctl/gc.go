package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	codestore "campus-sso/internal/auth/store/authorization-code"
	pendingstore "campus-sso/internal/auth/store/pending-consent"
	refreshstore "campus-sso/internal/auth/store/refresh-token"
	"campus-sso/internal/auth/store/revocation"
)

// expirer is implemented by every store holding short-lived records.
type expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type namedExpirer struct {
	name  string
	store expirer
}

// collectGarbage purges each store in turn and reports per-store counts.
// It stops at the first failure.
func collectGarbage(ctx context.Context, stores []namedExpirer, now time.Time) (map[string]int, error) {
	removed := make(map[string]int, len(stores))
	for _, s := range stores {
		n, err := s.store.DeleteExpired(ctx, now)
		if err != nil {
			return removed, fmt.Errorf("purge %s: %w", s.name, err)
		}
		removed[s.name] = n
	}
	return removed, nil
}

func newGCCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Delete expired codes, pending consents, refresh tokens and revocations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, log, err := openDB(ctx, *envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			removed, err := collectGarbage(ctx, []namedExpirer{
				{name: "authorization_codes", store: codestore.NewPostgres(db)},
				{name: "pending_consents", store: pendingstore.NewPostgres(db)},
				{name: "refresh_tokens", store: refreshstore.NewPostgres(db)},
				{name: "token_revocations", store: revocation.NewPostgresTRL(db)},
			}, time.Now())
			for name, n := range removed {
				log.Info("expired records removed", "table", name, "count", n)
			}
			return err
		},
	}
}
