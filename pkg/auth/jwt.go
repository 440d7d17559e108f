package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const (
	DefaultAccessTTL = 24 * time.Hour
	DefaultResetTTL  = time.Hour

	passwordResetType = "password_reset"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Config holds the signing key and lifetimes for issued tokens.
type Config struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
	ResetTTL  time.Duration
}

// Claims is the decoded content of a session token.
type Claims struct {
	Email     string
	Role      model.Role
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email  string     `json:"email"`
	Role   model.Role `json:"role,omitempty"`
	UserID int64      `json:"userId,omitempty"`
	Type   string     `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 identity tokens.
type TokenService interface {
	Issue(email string, role model.Role, userID int64) (string, error)
	Validate(token string) bool
	Decode(token string) (*Claims, error)
	IsExpired(token string) bool
	HasRole(token string, role model.Role) bool
	Refresh(token string) (string, error)
	RemainingTime(token string) time.Duration
	IssuePasswordReset(email string) (string, error)
	ValidatePasswordReset(token string) bool
	PasswordResetEmail(token string) (string, error)
}

// TokenAuthority is the stateless TokenService implementation.
type TokenAuthority struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	resetTTL  time.Duration
	now       func() time.Time
}

// NewTokenAuthority builds an authority from cfg. A nil clock means time.Now.
func NewTokenAuthority(cfg Config, clock func() time.Time) (*TokenAuthority, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &TokenAuthority{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		accessTTL: cfg.AccessTTL,
		resetTTL:  cfg.ResetTTL,
		now:       clock,
	}, nil
}

func (a *TokenAuthority) Issue(email string, role model.Role, userID int64) (string, error) {
	if email == "" || !role.Valid() {
		return "", ErrInvalidClaims
	}
	return a.sign(tokenClaims{
		Email:            email,
		Role:             role,
		UserID:           userID,
		RegisteredClaims: a.registered(email, a.accessTTL),
	})
}

// Validate never returns an error; any failure means the token is not usable.
func (a *TokenAuthority) Validate(token string) bool {
	_, err := a.Decode(token)
	return err == nil
}

func (a *TokenAuthority) Decode(token string) (*Claims, error) {
	claims, err := a.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != "" {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return &Claims{
		Email:     claims.Email,
		Role:      claims.Role,
		UserID:    claims.UserID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IsExpired treats any token that cannot be decoded as expired.
func (a *TokenAuthority) IsExpired(token string) bool {
	claims, err := a.parse(token)
	if err != nil {
		return true
	}
	return !a.now().Before(claims.ExpiresAt.Time)
}

func (a *TokenAuthority) HasRole(token string, role model.Role) bool {
	claims, err := a.Decode(token)
	if err != nil {
		return false
	}
	return claims.Role == role
}

// Refresh re-issues a still valid session token with a fresh lifetime.
func (a *TokenAuthority) Refresh(token string) (string, error) {
	claims, err := a.Decode(token)
	if err != nil {
		return "", err
	}
	return a.Issue(claims.Email, claims.Role, claims.UserID)
}

func (a *TokenAuthority) RemainingTime(token string) time.Duration {
	claims, err := a.Decode(token)
	if err != nil {
		return 0
	}
	remaining := claims.ExpiresAt.Sub(a.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (a *TokenAuthority) IssuePasswordReset(email string) (string, error) {
	if email == "" {
		return "", ErrInvalidClaims
	}
	return a.sign(tokenClaims{
		Email:            email,
		Type:             passwordResetType,
		RegisteredClaims: a.registered(email, a.resetTTL),
	})
}

func (a *TokenAuthority) ValidatePasswordReset(token string) bool {
	_, err := a.PasswordResetEmail(token)
	return err == nil
}

// PasswordResetEmail returns the subject of a valid password reset token.
func (a *TokenAuthority) PasswordResetEmail(token string) (string, error) {
	claims, err := a.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Type != passwordResetType {
		return "", fmt.Errorf("%w: not a password reset token", ErrInvalidToken)
	}
	return claims.Subject, nil
}

func (a *TokenAuthority) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := a.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (a *TokenAuthority) sign(claims tokenClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (a *TokenAuthority) parse(token string) (*tokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Email == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
