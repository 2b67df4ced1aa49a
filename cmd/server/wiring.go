package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appstore "campus-sso/internal/application/store"
	authhandler "campus-sso/internal/auth/handler"
	"campus-sso/internal/auth/issuer"
	authservice "campus-sso/internal/auth/service"
	codestore "campus-sso/internal/auth/store/authorization-code"
	pendingstore "campus-sso/internal/auth/store/pending-consent"
	refreshstore "campus-sso/internal/auth/store/refresh-token"
	"campus-sso/internal/auth/store/revocation"
	userstore "campus-sso/internal/auth/store/user"
	consentservice "campus-sso/internal/consent/service"
	consentstore "campus-sso/internal/consent/store"
	credhandler "campus-sso/internal/credential/handler"
	credservice "campus-sso/internal/credential/service"
	keystore "campus-sso/internal/credential/store"
	jwttoken "campus-sso/internal/jwt_token"
	"campus-sso/internal/platform/config"
	"campus-sso/internal/platform/metrics"
	"campus-sso/internal/platform/postgres"
	"campus-sso/internal/platform/redis"
	"campus-sso/internal/scope"
	"campus-sso/internal/seed"
	auditkafka "campus-sso/pkg/platform/audit/kafka"
	"campus-sso/pkg/platform/audit/outbox"
	"campus-sso/pkg/platform/audit/publisher"
	auditpg "campus-sso/pkg/platform/audit/store/postgres"
	"campus-sso/pkg/platform/middleware/metadata"
	"campus-sso/pkg/platform/middleware/request"
	"campus-sso/pkg/platform/middleware/requesttime"
	"campus-sso/pkg/platform/tx"
)

// infrastructure holds the optional external connections. Every field may be
// nil, in which case the in-memory implementation is used.
type infrastructure struct {
	db    *sql.DB
	redis *redis.Client
	kafka *auditkafka.Producer
}

func openInfrastructure(ctx context.Context, cfg config.Config, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	infra.db = db
	if db == nil {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.redis = rdb

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := auditkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.kafka = producer
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("failed to ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
	}
	return infra, nil
}

func (i *infrastructure) Close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

type application struct {
	router    http.Handler
	publisher *publisher.Publisher
	relay     *outbox.Relay
}

type storeSet struct {
	users    userRepository
	apps     appRepository
	codes    authservice.CodeStore
	pending  authservice.PendingConsentStore
	refresh  issuer.RefreshStore
	trl      issuer.Blacklist
	consents consentservice.Store
	keys     credservice.KeyStore
	tx       tx.Runner
}

type userRepository interface {
	authservice.UserStore
	seed.UserStore
}

// appRepository is the union of what the auth, consent and credential
// services and the seed loader need from the application store.
type appRepository interface {
	authservice.ApplicationStore
	credservice.ApplicationStore
	seed.ApplicationStore
}

func buildStores(infra *infrastructure, m *metrics.Metrics) storeSet {
	var set storeSet
	if infra.db != nil {
		set = storeSet{
			users:    userstore.NewPostgres(infra.db),
			apps:     appstore.NewPostgres(infra.db),
			codes:    codestore.NewPostgres(infra.db),
			pending:  pendingstore.NewPostgres(infra.db),
			refresh:  refreshstore.NewPostgres(infra.db),
			trl:      revocation.NewPostgresTRL(infra.db),
			consents: consentstore.NewPostgres(infra.db),
			keys:     keystore.NewPostgres(infra.db),
			tx:       tx.NewSQLRunner(infra.db),
		}
	} else {
		set = storeSet{
			users:    userstore.New(),
			apps:     appstore.NewInMemory(),
			codes:    codestore.New(),
			pending:  pendingstore.New(),
			refresh:  refreshstore.New(),
			trl:      revocation.NewInMemoryTRL(),
			consents: consentstore.NewInMemory(),
			keys:     keystore.NewInMemory(),
			tx:       tx.NewShardedRunner(),
		}
	}
	// A shared blacklist lets every replica see a logout immediately.
	if infra.redis != nil {
		set.trl = revocation.NewRedisTRL(infra.redis.Client, revocation.WithRedisMetrics(m))
	}
	return set
}

// buildAudit picks the audit sink: the Postgres outbox relayed to Kafka,
// Kafka directly, or log lines only.
func buildAudit(infra *infrastructure, log *slog.Logger) (*publisher.Publisher, *outbox.Relay) {
	switch {
	case infra.db != nil && infra.kafka != nil:
		store := auditpg.New(infra.db)
		relay := outbox.NewRelay(infra.db, store, infra.kafka, log)
		return publisher.NewPublisher(store, publisher.WithLogger(log)), relay
	case infra.kafka != nil:
		return publisher.NewPublisher(infra.kafka, publisher.WithLogger(log), publisher.WithAsyncBuffer(1024)), nil
	default:
		return publisher.NewPublisher(nil, publisher.WithLogger(log)), nil
	}
}

func buildApp(ctx context.Context, cfg config.Config, infra *infrastructure, log *slog.Logger) (*application, error) {
	m := metrics.New(prometheus.DefaultRegisterer)
	stores := buildStores(infra, m)
	if cfg.SeedFile != "" {
		if err := seedStores(ctx, cfg.SeedFile, stores, os.Stdout, log); err != nil {
			return nil, err
		}
	} else if infra.db == nil {
		log.Warn("no DATABASE_URL or SEED_FILE: in-memory stores start empty and no login can succeed")
	}
	auditPublisher, relay := buildAudit(infra, log)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	tokens, err := issuer.New(jwtService, stores.refresh, stores.trl,
		cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL,
		issuer.WithLogger(log),
		issuer.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	consents := consentservice.New(stores.consents,
		consentservice.WithLogger(log),
		consentservice.WithTxRunner(stores.tx),
		consentservice.WithAccessRecorder(stores.apps),
	)
	credentials := credservice.New(stores.keys, stores.apps,
		credservice.WithLogger(log),
		credservice.WithAuditPublisher(auditPublisher),
		credservice.WithMetrics(m),
		credservice.WithTxRunner(stores.tx),
	)

	authSvc, err := authservice.New(authservice.Stores{
		Users:           stores.users,
		Applications:    stores.apps,
		Codes:           stores.codes,
		PendingConsents: stores.pending,
	}, consents, tokens, credentials, authservice.Config{
		CodeTTL:        cfg.Auth.AuthCodeTTL,
		ConsentTTL:     cfg.Auth.ConsentTTL,
		PortalAudience: cfg.Auth.PortalAudience,
	},
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditPublisher),
		authservice.WithMetrics(m),
		authservice.WithScopeRegistry(scope.NewRegistry(cfg.Auth.DefaultScopes)),
	)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	verifier := issuer.NewMiddlewareVerifier(tokens)
	keyAuth := credservice.NewPrincipalAdapter(credentials)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)

	r.Get("/healthz", infra.healthHandler())
	r.Handle("/metrics", promhttp.Handler())

	authhandler.New(authSvc, verifier, keyAuth, cfg.Auth.PortalAudience, cfg.Auth.ErrorPageURL, log).Register(r)
	credhandler.New(credentials, verifier, cfg.Auth.PortalAudience, cfg.Server.AdminToken, log).Register(r)

	return &application{router: r, publisher: auditPublisher, relay: relay}, nil
}
