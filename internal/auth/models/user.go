package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"campus-sso/internal/scope"
	id "campus-sso/pkg/domain"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User is read-only to the authorization engine; registration and profile
// editing happen elsewhere.
type User struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	Name         string
	RollNo       string
	Branch       string
	Semester     string
	Role         string
	Status       UserStatus
	CreatedAt    time.Time
}

// IsActive reports whether the account may sign in at all.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}

// CheckPassword compares against the stored bcrypt hash.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" || password == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// HashPassword produces the stored form of a password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Profile is the field set the scope registry filters.
func (u *User) Profile() scope.UserProfile {
	return scope.UserProfile{
		ID:       u.ID.String(),
		Name:     u.Name,
		Email:    u.Email,
		RollNo:   u.RollNo,
		Branch:   u.Branch,
		Semester: u.Semester,
		Role:     u.Role,
	}
}

// UserSummary is returned by the first-party login endpoint.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID.String(), Email: u.Email, Name: u.Name, Role: u.Role}
}
