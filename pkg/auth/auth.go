// Package auth registers users, checks passwords and issues the JWT sessions
// the HTTP API authenticates with.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserStore is the part of the storage the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
}

// Service handles registration, login and token checks.
type Service struct {
	users       UserStore
	jwtSecret   []byte
	tokenExpiry time.Duration
	logger      *logrus.Logger
	now         func() time.Time
}

func NewService(users UserStore, jwtSecret string, tokenExpiry time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		users:       users,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: tokenExpiry,
		logger:      logger,
		now:         time.Now,
	}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

func (in *RegisterInput) normalize() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Mobile = strings.TrimSpace(in.Mobile)

	var v apperr.Validation
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		v.Add("email", "must be a valid email address")
	}
	v.Check(in.Name != "", "name", "is required")
	v.Check(len(in.Password) >= minPasswordLength, "password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	return v.Err()
}

// Register creates an account, or activates the account of a user who was
// invited into a pund before signing up.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	s.logger.WithField("email", in.Email).Info("Registering user")

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil && user.IsActive:
		return nil, apperr.InvalidState("an account with this email already exists")
	case err == nil:
		user.Name = in.Name
		if in.Mobile != "" {
			user.Mobile = in.Mobile
		}
		user.PasswordHash = string(hash)
		user.IsActive = true
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
		s.logger.WithField("user_id", user.ID).Info("Invited user activated")
		return user, nil
	case !apperr.Is(err, apperr.KindNotFound):
		return nil, err
	}

	user = &models.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Name:         in.Name,
		Mobile:       in.Mobile,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login checks the credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if apperr.Is(err, apperr.KindNotFound) {
		return "", apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return "", err
	}
	if !user.IsActive || user.PasswordHash == "" {
		return "", apperr.Unauthorized("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("user_id", user.ID).Warn("Failed login attempt")
		return "", apperr.Unauthorized("invalid email or password")
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// GenerateToken signs an HS256 token for the user.
func (s *Service) GenerateToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// Session is the authenticated caller of a request.
type Session struct {
	UserID uuid.UUID
}

// ParseToken validates a token and returns its session.
func (s *Service) ParseToken(tokenString string) (Session, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, apperr.Unauthorized("token has expired")
		}
		return Session{}, apperr.Unauthorized("invalid token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Session{}, apperr.Unauthorized("invalid token subject")
	}
	return Session{UserID: id}, nil
}

// CurrentUser loads the user behind a session.
func (s *Service) CurrentUser(ctx context.Context, sess Session) (*models.User, error) {
	user, err := s.users.GetUser(ctx, sess.UserID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Unauthorized("user no longer exists")
	}
	return user, err
}

type sessionKey struct{}

// WithSession stores the session in ctx.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session stored by WithSession.
func SessionFrom(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(Session)
	return sess, ok
}
