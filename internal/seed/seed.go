// Package seed loads users and relying-party applications from a YAML file
// into the stores. ssoctl applies it to Postgres; the server applies it to
// its in-memory stores at startup.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	appmodels "campus-sso/internal/application/models"
	"campus-sso/internal/auth/models"
	"campus-sso/internal/credential/secrets"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

// Document is the seed file layout.
type Document struct {
	Users        []User        `yaml:"users"`
	Applications []Application `yaml:"applications"`
}

type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	RollNo   string `yaml:"roll_no"`
	Branch   string `yaml:"branch"`
	Semester string `yaml:"semester"`
	Role     string `yaml:"role"`
}

type Application struct {
	ClientID  string   `yaml:"client_id"`
	Name      string   `yaml:"name"`
	BaseURL   string   `yaml:"base_url"`
	Redirects []string `yaml:"redirects"`
	// ClientSecret pins the secret for fixtures; empty generates one.
	ClientSecret string `yaml:"client_secret"`
	ResponseType string `yaml:"response_type"`
}

type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type ApplicationStore interface {
	Create(ctx context.Context, app *appmodels.Application) error
	FindByClientID(ctx context.Context, clientID string) (*appmodels.Application, error)
}

// IssuedClient reports a secret generated for a new application. It is the
// only time the plaintext exists.
type IssuedClient struct {
	ClientID     string
	ClientSecret string
}

// Parse decodes and validates a seed document. Unknown keys are errors.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, u := range doc.Users {
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("users[%d]: email and password are required", i)
		}
	}
	for i, a := range doc.Applications {
		if a.ClientID == "" || a.Name == "" {
			return nil, fmt.Errorf("applications[%d]: client_id and name are required", i)
		}
	}
	return &doc, nil
}

func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Apply creates missing users and applications. Existing entries are left
// untouched so a seed can be applied repeatedly.
func Apply(ctx context.Context, doc *Document, users UserStore, apps ApplicationStore, now time.Time) ([]IssuedClient, error) {
	for _, u := range doc.Users {
		_, err := users.FindByEmail(ctx, u.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("look up user %s: %w", u.Email, err)
		}
		hash, err := models.HashPassword(u.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		user := &models.User{
			ID:           id.NewUserID(),
			Email:        u.Email,
			PasswordHash: hash,
			Name:         u.Name,
			RollNo:       u.RollNo,
			Branch:       u.Branch,
			Semester:     u.Semester,
			Role:         u.Role,
			Status:       models.UserStatusActive,
			CreatedAt:    now,
		}
		if err := users.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("save user %s: %w", u.Email, err)
		}
	}

	var issued []IssuedClient
	for _, a := range doc.Applications {
		_, err := apps.FindByClientID(ctx, a.ClientID)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("look up application %s: %w", a.ClientID, err)
		}
		app, err := appmodels.NewApplication(id.NewApplicationID(), a.ClientID, a.Name, a.BaseURL, a.Redirects, now)
		if err != nil {
			return nil, fmt.Errorf("application %s: %w", a.ClientID, err)
		}
		if a.ResponseType != "" {
			app.DefaultResponseType = a.ResponseType
		}
		secret := a.ClientSecret
		if secret == "" {
			if secret, err = secrets.Generate(); err != nil {
				return nil, err
			}
			issued = append(issued, IssuedClient{ClientID: app.ClientID, ClientSecret: secret})
		}
		if app.ClientSecretHash, err = secrets.Hash(secret); err != nil {
			return nil, err
		}
		if err := apps.Create(ctx, app); err != nil {
			return nil, fmt.Errorf("create application %s: %w", a.ClientID, err)
		}
	}
	return issued, nil
}
