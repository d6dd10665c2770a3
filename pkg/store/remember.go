package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"askmynotes/pkg/domain"
)

const rememberIssuer = "askmynotes-web"

// RememberCodec signs and verifies the long-lived remember-me cookie.
// The cookie only pre-fills the login form; it never resumes a session.
type RememberCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type rememberClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// NewRememberCodec builds an HS256 codec. secret must be at least 32 bytes.
func NewRememberCodec(secret string, ttl time.Duration) (*RememberCodec, error) {
	if len(secret) < 32 {
		return nil, errors.New("remember secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RememberCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns how long issued tokens stay valid.
func (c *RememberCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the remembered user.
func (c *RememberCodec) Issue(u domain.RememberedUser) (string, error) {
	now := c.now().UTC()
	claims := rememberClaims{
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    rememberIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign remember token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the remembered user.
func (c *RememberCodec) Parse(token string) (domain.RememberedUser, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.RememberedUser{}, errors.New("empty remember token")
	}
	claims := rememberClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(rememberIssuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid remember token")
		}
		return domain.RememberedUser{}, err
	}
	if strings.TrimSpace(claims.Email) == "" {
		return domain.RememberedUser{}, errors.New("remember token missing email")
	}
	return domain.RememberedUser{Email: claims.Email, Name: claims.Name}, nil
}
