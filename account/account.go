// Package account covers registration, login and user lookup. It also
// serves as the directory the feed engine snapshots display profiles from.
package account

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/devconnecthq/devconnect/feed"
)

var (
	// ErrEmailTaken reports a registration against an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidLogin covers both an unknown email and a wrong password,
	// so a caller cannot probe which accounts exist.
	ErrInvalidLogin = errors.New("invalid email or password")

	// ErrNotFound reports that no user has the given id.
	ErrNotFound = errors.New("user not found")
)

const bcryptCost = 10

// A User is a registered account. PasswordHash never leaves the package
// through CurrentUser.
type User struct {
	ID           string
	Name         string
	Email        string
	Avatar       string
	PasswordHash string
	CreatedAt    time.Time
}

// A UserStore persists users.
type UserStore interface {
	InsertUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// A TokenIssuer signs a credential for a freshly registered or logged-in
// user.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service implements registration and login, and feed.Directory.
type Service struct {
	Store  UserStore
	Tokens TokenIssuer
}

// Register creates an account with a bcrypt-hashed password and a
// gravatar-derived avatar, and returns a signed credential for it.
func (s *Service) Register(ctx context.Context, name, email, password string) (string, error) {
	email = normalizeEmail(email)
	if _, err := s.Store.GetUserByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	u, err := s.Store.InsertUser(ctx, User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Avatar:       GravatarURL(email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return s.Tokens.Issue(u.ID)
}

// Login verifies the password and returns a signed credential.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.Store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidLogin
	}
	if err != nil {
		return "", fmt.Errorf("lookup email: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidLogin
	}
	return s.Tokens.Issue(u.ID)
}

// CurrentUser returns the account for an authenticated user id with the
// password hash stripped.
func (s *Service) CurrentUser(ctx context.Context, userID string) (User, error) {
	u, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

// LookupUser implements feed.Directory.
func (s *Service) LookupUser(ctx context.Context, userID string) (feed.Profile, error) {
	u, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return feed.Profile{}, err
	}
	return feed.Profile{Name: u.Name, Avatar: u.Avatar}, nil
}

// GravatarURL derives the avatar URL for an email: 200px, PG rated, with
// the mystery-man fallback.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(normalizeEmail(email)))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=200&r=pg&d=mm", hex.EncodeToString(sum[:]))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
