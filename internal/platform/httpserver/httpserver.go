package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"campus-sso/internal/platform/config"
)

const readHeaderTimeout = 5 * time.Second

// New builds the SSO HTTP server. Zero timeouts in cfg fall back to Go's
// unbounded defaults, except the header timeout which is always set.
func New(cfg config.Server, handler http.Handler, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	}
	return srv
}
