// Package auth handles registration, login and cookie sessions.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
	"tripplanner/pkg/logger"
)

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type Service struct {
	store    Store
	sessions *Sessions
	admins   map[string]bool
	cost     int
	now      func() time.Time
	logger   *logger.Logger
}

// NewService wires the auth service. Emails in adminEmails get the admin
// role when they register.
func NewService(store Store, sessions *Sessions, adminEmails []string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = NormalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &Service{
		store:    store,
		sessions: sessions,
		admins:   admins,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   log,
	}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Sessions() *Sessions {
	return s.sessions
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a free-plan account.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	email = NormalizeEmail(email)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	switch {
	case email == "":
		return nil, apperr.Missing("email")
	case password == "":
		return nil, apperr.Missing("password")
	case firstName == "":
		return nil, apperr.Missing("firstName")
	case lastName == "":
		return nil, apperr.Missing("lastName")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Invalid("email", "invalid email address")
	}
	switch {
	case utf8.RuneCountInString(email) > models.MaxEmailLen:
		return nil, apperr.TooLong("email", models.MaxEmailLen)
	case utf8.RuneCountInString(firstName) > models.MaxNameLen:
		return nil, apperr.TooLong("firstName", models.MaxNameLen)
	case utf8.RuneCountInString(lastName) > models.MaxNameLen:
		return nil, apperr.TooLong("lastName", models.MaxNameLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperr.Invalid("password", "password cannot be used")
	}

	role := models.RoleUser
	if s.admins[email] {
		role = models.RoleAdmin
	}
	now := s.now().UTC()
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Plan:         models.PlanFree,
		Role:         role,
		CreatedAt:    now,
		LastLoginAt:  &now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("User registered", "user_id", user.ID, "role", role)
	return user, nil
}

// Login checks credentials and stamps last_login_at.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Missing("email")
	}
	if password == "" {
		return nil, apperr.Missing("password")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.logger.Warnw("Failed login", "user_id", user.ID)
		return nil, apperr.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	return user, nil
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}
	id, err := s.sessions.Parse(token)
	if err != nil {
		s.logger.Debugw("Rejected session", "error", err)
		return nil, apperr.ErrUnauthenticated
	}
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrUnauthenticated
	}
	return user, err
}
