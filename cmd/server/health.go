package main

import (
	"context"
	"net/http"
	"time"

	"campus-sso/pkg/platform/httputil"
)

const healthCheckTimeout = 2 * time.Second

type healthCheck func(ctx context.Context) error

func (i *infrastructure) checks() map[string]healthCheck {
	checks := map[string]healthCheck{}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	return checks
}

// healthHandler reports 503 when any configured store is unreachable. An
// all in-memory deployment is always healthy.
func (i *infrastructure) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := map[string]string{}
		for name, check := range i.checks() {
			if err := check(ctx); err != nil {
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}
