package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, secret string) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(Config{Secret: secret, Issuer: "storefront-test"})
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer(Config{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndVerify(t *testing.T) {
	issuer := newTestIssuer(t, "super-secret")
	want := Claims{ID: "7b5b7f4e", Email: "a@x.com", Role: "user"}

	raw, err := issuer.Issue(want)
	require.NoError(t, err)
	assert.Len(t, strings.Split(raw, "."), 3)

	got, err := issuer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTokenExpiresAfterTwoDays(t *testing.T) {
	issuer := newTestIssuer(t, "super-secret")
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	raw, err := issuer.Issue(Claims{ID: "u1", Email: "a@x.com", Role: "user"})
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(47 * time.Hour) }
	_, err = issuer.Verify(raw)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(49 * time.Hour) }
	_, err = issuer.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	raw, err := newTestIssuer(t, "right-secret").Issue(Claims{ID: "u1"})
	require.NoError(t, err)

	_, err = newTestIssuer(t, "wrong-secret").Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	_, err := newTestIssuer(t, "k").Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetGrant(t *testing.T) {
	issuer := newTestIssuer(t, "super-secret")

	grant, err := issuer.IssueResetGrant("a@x.com")
	require.NoError(t, err)
	require.NoError(t, issuer.VerifyResetGrant(grant, "a@x.com"))
	assert.ErrorIs(t, issuer.VerifyResetGrant(grant, "b@x.com"), ErrInvalidToken)

	_, err = issuer.Verify(grant)
	assert.ErrorIs(t, err, ErrInvalidToken, "reset grant must not authenticate requests")

	access, err := issuer.Issue(Claims{ID: "u1", Email: "a@x.com", Role: "user"})
	require.NoError(t, err)
	assert.ErrorIs(t, issuer.VerifyResetGrant(access, "a@x.com"), ErrInvalidToken)
}

func TestResetGrantExpires(t *testing.T) {
	issuer := newTestIssuer(t, "super-secret")
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	grant, err := issuer.IssueResetGrant("a@x.com")
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(DefaultResetGrantTTL + time.Minute) }
	assert.ErrorIs(t, issuer.VerifyResetGrant(grant, "a@x.com"), ErrTokenExpired)
}
