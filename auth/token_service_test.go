package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	serrors "go.pilab.hu/stats/errors"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(clock *fakeClock) *TokenService {
	return NewTokenService("stats", "secret", WithClock(clock.Now))
}

func TestDeriveSigningKey(t *testing.T) {
	// sha256("statssecret")
	assert.Equal(t,
		"0e6a91f439efdd8ff65074a09a052799b9d86f74459cb6f3339b75840ff81779",
		string(DeriveSigningKey("stats", "secret")))
	assert.NotEqual(t, DeriveSigningKey("stats", "secret"), DeriveSigningKey("stats", "other"))
}

func TestIssue_ExpiringToken(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(clock)

	token, expiresAt, err := svc.Issue("stats", 0)
	require.NoError(t, err)
	require.NotNil(t, expiresAt)
	assert.Equal(t, clock.now.Add(24*time.Hour).Unix(), *expiresAt)

	sub, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "stats", sub)

	clock.now = clock.now.Add(25 * time.Hour)
	_, err = svc.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, serrors.ErrUnauthenticated)
}

func TestIssue_MagnitudeIsIgnored(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(clock)

	_, short, err := svc.Issue("stats", 1)
	require.NoError(t, err)
	_, long, err := svc.Issue("stats", 365)
	require.NoError(t, err)

	assert.Equal(t, *short, *long)
}

func TestIssue_NonExpiringToken(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(clock)

	token, expiresAt, err := svc.Issue("stats", -1)
	require.NoError(t, err)
	assert.Nil(t, expiresAt)

	clock.now = clock.now.AddDate(10, 0, 0)
	sub, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "stats", sub)
}

func TestVerify_Rejections(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := newTestService(clock)

	other := NewTokenService("stats", "different", WithClock(clock.Now))
	forged, _, err := other.Issue("stats", -1)
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"foo": "bar"}).
		SignedString(DeriveSigningKey("stats", "secret"))
	require.NoError(t, err)

	valid, _, err := svc.Issue("stats", -1)
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "stats"}).
		SignedString(DeriveSigningKey("stats", "secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong key":    forged,
		"no subject":   noSub,
		"wrong alg":    wrongAlg,
		"tampered sig": valid[:len(valid)-4] + "AAAA",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, serrors.ErrUnauthenticated)
		})
	}
}

func TestVerify_AcceptsTokensSignedWithDerivedKey(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "stats"}).
		SignedString(DeriveSigningKey("stats", "secret"))
	require.NoError(t, err)

	sub, err := NewTokenService("stats", "secret").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "stats", sub)
}

func TestWithValidity(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC)}
	svc := NewTokenService("stats", "secret", WithClock(clock.Now), WithValidity(time.Hour))

	_, expiresAt, err := svc.Issue("stats", 0)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour).Unix(), *expiresAt)
}

func TestTokenSigner_UnknownKey(t *testing.T) {
	signer := NewTokenSigner()
	_, err := signer.Sign(jwt.MapClaims{"sub": "x"}, "")
	assert.ErrorIs(t, err, ErrInvalidKeyID)

	signer.AddKeySigner([]byte("k"))
	_, err = signer.Sign(jwt.MapClaims{"sub": "x"}, "rotated")
	assert.ErrorIs(t, err, ErrInvalidKeyID)
}

func TestCredentialChecker(t *testing.T) {
	checker, err := NewCredentialChecker("stats", "secret", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, checker.Check("stats", "secret"))
	assert.ErrorIs(t, checker.Check("stats", "wrong"), serrors.ErrInvalidCredentials)
	assert.ErrorIs(t, checker.Check("bar", "secret"), serrors.ErrInvalidCredentials)
	assert.ErrorIs(t, checker.Check("", ""), serrors.ErrInvalidCredentials)
}
