// Package auth implements identity management: sign-up, sign-in, and bearer
// token verification. Passwords are stored as bcrypt hashes; sessions are
// stateless HS256 JWTs carrying the identity ID as subject.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
	"github.com/sschepis/symprime-mentor-ai/internal/store"
)

const tokenIssuer = "symprime"

// ErrInvalidCredentials is returned when the email or password does not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidToken is returned when a bearer token fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// Session is the result of a successful sign-up or sign-in.
type Session struct {
	User      *model.User    `json:"user"`
	Profile   *model.Profile `json:"profile"`
	Token     string         `json:"access_token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Service issues and verifies sessions against the store.
type Service struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
}

// NewService creates an auth service signing tokens with secret, valid for ttl.
func NewService(s store.Store, secret []byte, ttl time.Duration) *Service {
	return &Service{store: s, secret: secret, ttl: ttl}
}

// SignUp registers a new identity and its profile, granting the default
// application role. Returns a ready-to-use session.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           model.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	profile := &model.Profile{
		ID:           user.ID,
		Name:         name,
		Email:        email,
		Subscription: model.TierFree,
		JoinedDate:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	if err := s.store.AddUserRole(ctx, user.ID, model.RoleDefault); err != nil {
		return nil, err
	}

	return s.newSession(user, profile)
}

// SignIn verifies credentials and returns a fresh session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.store.GetProfile(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return s.newSession(user, profile)
}

// VerifyToken validates a bearer token and returns the identity ID it carries.
func (s *Service) VerifyToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(tokenIssuer))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *Service) newSession(user *model.User, profile *model.Profile) (*Session, error) {
	now := time.Now().UTC()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{User: user, Profile: profile, Token: signed, ExpiresAt: expires}, nil
}
