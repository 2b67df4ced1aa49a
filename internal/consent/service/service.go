// Package service is the consent ledger: it answers whether a user already
// approved a scope set for an application and records new approvals.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	appmodels "campus-sso/internal/application/models"
	"campus-sso/internal/consent/models"
	"campus-sso/internal/scope"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/sentinel"
	"campus-sso/pkg/platform/tx"
	"campus-sso/pkg/requestcontext"
)

var tracer = otel.Tracer("campus-sso/consent")

type Store interface {
	Find(ctx context.Context, userID id.UserID, appID id.ApplicationID) (*models.Record, error)
	Save(ctx context.Context, record *models.Record) error
	Revoke(ctx context.Context, userID id.UserID, appID id.ApplicationID) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Record, error)
}

// AccessRecorder notes that a user has started using an application.
type AccessRecorder interface {
	EnsureAccess(ctx context.Context, userID id.UserID, appID id.ApplicationID, now time.Time) (*appmodels.Access, error)
}

type Service struct {
	store  Store
	tx     tx.Runner
	access AccessRecorder
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTxRunner sets the unit of work wrapping read-union-write.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithAccessRecorder(access AccessRecorder) Option {
	return func(s *Service) {
		s.access = access
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewShardedRunner()
	}
	return s
}

// HasConsent reports whether every requested scope is already granted.
// An empty request is always covered.
func (s *Service) HasConsent(ctx context.Context, userID id.UserID, appID id.ApplicationID, scopes []string) (bool, error) {
	ctx, span := tracer.Start(ctx, "consent.HasConsent")
	defer span.End()

	requested := scope.Normalize(scopes)
	if len(requested) == 0 {
		return true, nil
	}
	record, err := s.store.Find(ctx, userID, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent")
	}
	return record.Covers(requested), nil
}

// GrantConsent merges scopes into the stored consent for the pair, clears a
// previous revocation and returns the resulting record.
func (s *Service) GrantConsent(ctx context.Context, userID id.UserID, appID id.ApplicationID, scopes []string) (*models.Record, error) {
	ctx, span := tracer.Start(ctx, "consent.GrantConsent")
	defer span.End()

	incoming := scope.Normalize(scopes)
	now := requestcontext.Now(ctx)
	var result *models.Record

	txCtx := tx.WithShardKey(ctx, userID.String()+":"+appID.String())
	err := s.tx.RunInTx(txCtx, func(ctx context.Context) error {
		existing, err := s.store.Find(ctx, userID, appID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if len(incoming) == 0 {
			result = existing
			if result == nil {
				result = &models.Record{UserID: userID, ApplicationID: appID, Scopes: []string{}}
			}
			return nil
		}
		var current []string
		if existing != nil {
			current = existing.Scopes
		}

		record := &models.Record{
			UserID:        userID,
			ApplicationID: appID,
			Scopes:        models.Union(current, incoming),
			GrantedAt:     now,
		}
		if err := s.store.Save(ctx, record); err != nil {
			return err
		}
		if s.access != nil {
			if _, err := s.access.EnsureAccess(ctx, userID, appID, now); err != nil {
				return err
			}
		}
		result = record
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent")
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "consent recorded",
			"user_id", userID.String(),
			"app_id", appID.String(),
			"scopes", scope.String(result.Scopes),
		)
	}
	return result, nil
}

// Revoke withdraws the pair's consent; the next login asks again. The scopes
// stay on record and are merged back in by the next grant.
func (s *Service) Revoke(ctx context.Context, userID id.UserID, appID id.ApplicationID) error {
	ctx, span := tracer.Start(ctx, "consent.Revoke")
	defer span.End()

	if err := s.store.Revoke(ctx, userID, appID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "consent not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke consent")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "consent revoked",
			"user_id", userID.String(),
			"app_id", appID.String(),
		)
	}
	return nil
}

// List returns every consent the user has given.
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*models.Record, error) {
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
	}
	return records, nil
}
