package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAuthority(t *testing.T) (*TokenAuthority, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	a, err := NewTokenAuthority(Config{Secret: testSecret, Issuer: "clinic-api"}, clock.Now)
	require.NoError(t, err)
	return a, clock
}

func TestNewTokenAuthority_RequiresSecret(t *testing.T) {
	_, err := NewTokenAuthority(Config{}, nil)
	assert.Error(t, err)
}

func TestIssueAndDecode(t *testing.T) {
	a, clock := newTestAuthority(t)

	token, err := a.Issue("jane@example.com", model.RolePatient, 1)
	require.NoError(t, err)

	claims, err := a.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, model.RolePatient, claims.Role)
	assert.Equal(t, int64(1), claims.UserID)
	assert.True(t, claims.IssuedAt.Equal(clock.Now()))
	assert.True(t, claims.ExpiresAt.Equal(clock.Now().Add(DefaultAccessTTL)))
}

func TestIssue_RejectsUnknownRole(t *testing.T) {
	a, _ := newTestAuthority(t)

	_, err := a.Issue("x@example.com", model.Role("NURSE"), 1)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestValidate_ExpiresAfterTTL(t *testing.T) {
	a, clock := newTestAuthority(t)

	token, err := a.Issue("jane@example.com", model.RolePatient, 1)
	require.NoError(t, err)
	assert.True(t, a.Validate(token))
	assert.False(t, a.IsExpired(token))

	clock.Advance(DefaultAccessTTL - time.Second)
	assert.True(t, a.Validate(token))

	clock.Advance(time.Second)
	assert.False(t, a.Validate(token))
	assert.True(t, a.IsExpired(token))
	assert.Equal(t, time.Duration(0), a.RemainingTime(token))
}

func TestValidate_FailsClosed(t *testing.T) {
	a, _ := newTestAuthority(t)
	other, err := NewTokenAuthority(Config{Secret: strings.Repeat("z", 32), Issuer: "clinic-api"}, nil)
	require.NoError(t, err)

	forged, err := other.Issue("jane@example.com", model.RoleAdmin, 1)
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", "a.b.c", forged} {
		assert.False(t, a.Validate(token), token)
		assert.False(t, a.HasRole(token, model.RoleAdmin), token)
		assert.True(t, a.IsExpired(token), token)
	}
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	a, clock := newTestAuthority(t)

	claims := tokenClaims{
		Email: "jane@example.com",
		Role:  model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "jane@example.com",
			Issuer:    "clinic-api",
			IssuedAt:  jwt.NewNumericDate(clock.Now()),
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.False(t, a.Validate(unsigned))

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.False(t, a.Validate(hs512))
}

func TestHasRole(t *testing.T) {
	a, _ := newTestAuthority(t)

	token, err := a.Issue("doc@example.com", model.RoleDoctor, 7)
	require.NoError(t, err)

	assert.True(t, a.HasRole(token, model.RoleDoctor))
	assert.False(t, a.HasRole(token, model.RoleAdmin))
}

func TestPasswordReset(t *testing.T) {
	a, clock := newTestAuthority(t)

	reset, err := a.IssuePasswordReset("jane@example.com")
	require.NoError(t, err)
	assert.True(t, a.ValidatePasswordReset(reset))

	email, err := a.PasswordResetEmail(reset)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", email)

	// reset tokens are not session tokens
	assert.False(t, a.Validate(reset))
	assert.False(t, a.HasRole(reset, model.RolePatient))

	clock.Advance(DefaultResetTTL)
	assert.False(t, a.ValidatePasswordReset(reset))
}

func TestValidatePasswordReset_RejectsSessionToken(t *testing.T) {
	a, _ := newTestAuthority(t)

	session, err := a.Issue("jane@example.com", model.RolePatient, 1)
	require.NoError(t, err)

	assert.True(t, a.Validate(session))
	assert.False(t, a.ValidatePasswordReset(session))
}

func TestRefresh(t *testing.T) {
	a, clock := newTestAuthority(t)

	token, err := a.Issue("jane@example.com", model.RolePatient, 3)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, DefaultAccessTTL-time.Hour, a.RemainingTime(token))

	refreshed, err := a.Refresh(token)
	require.NoError(t, err)
	assert.Equal(t, DefaultAccessTTL, a.RemainingTime(refreshed))

	claims, err := a.Decode(refreshed)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.UserID)

	clock.Advance(DefaultAccessTTL)
	_, err = a.Refresh(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
