package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"tripplanner/config"
)

const issuer = "tripplanner"

// Sessions issues and verifies HS256 session tokens carried in a cookie.
type Sessions struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

func NewSessions(cfg config.SessionConfig) *Sessions {
	name := cfg.CookieName
	if name == "" {
		name = "tripplanner_session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sessions{
		secret:     []byte(cfg.Secret),
		cookieName: name,
		ttl:        ttl,
		secure:     cfg.Secure,
		now:        time.Now,
	}
}

func (s *Sessions) CookieName() string {
	return s.cookieName
}

// Sign returns a token identifying userID until the session TTL elapses.
func (s *Sessions) Sign(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return token, nil
}

// Parse verifies a token and returns the user id it names.
func (s *Sessions) Parse(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("session subject is not a user id")
	}
	return id, nil
}

// Issue signs a session for userID and sets it as an HttpOnly cookie.
func (s *Sessions) Issue(c *gin.Context, userID int64) error {
	token, err := s.Sign(userID)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, token, int(s.ttl/time.Second), "/", "", s.secure, true)
	return nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, "", -1, "/", "", s.secure, true)
}
