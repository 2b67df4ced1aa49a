package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"campus-sso/internal/seed"
)

// seedStores applies the seed file to whichever stores the server runs on.
// Generated client secrets go to out, never to the log.
func seedStores(ctx context.Context, path string, stores storeSet, out io.Writer, log *slog.Logger) error {
	doc, err := seed.ParseFile(path)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	issued, err := seed.Apply(ctx, doc, stores.users, stores.apps, time.Now())
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Info("seed applied", "file", path, "users", len(doc.Users), "applications", len(doc.Applications))
	for _, c := range issued {
		fmt.Fprintf(out, "client_id=%s client_secret=%s\n", c.ClientID, c.ClientSecret)
	}
	return nil
}
