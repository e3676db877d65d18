package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type RegisterRequest struct {
	Email    string
	Name     string
	Password string
	Role     Role
}

// TokenGrant pairs the raw API token with its owner. The raw token is
// shown exactly once; only its hash is stored.
type TokenGrant struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByToken(ctx context.Context, rawToken string) (*User, error)
	IssueToken(ctx context.Context, id snowflake.ID) (*TokenGrant, error)
	Exists(ctx context.Context, id snowflake.ID) (bool, error)
}

var (
	ErrNotFound           = errors.New("user_not_found")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrWeakPassword       = errors.New("weak_password")
)
