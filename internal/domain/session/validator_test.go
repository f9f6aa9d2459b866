package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func adminClaims(expiresIn time.Duration, now time.Time) *Claims {
	return &Claims{
		IsAdmin:   true,
		Email:     "ops@guestwave.io",
		IssuedAt:  now.Add(-time.Minute),
		ExpiresAt: now.Add(expiresIn),
	}
}

func TestValidate_NilClaims(t *testing.T) {
	v := NewValidator(nil)

	assert.Equal(t, ResultMalformed, v.Validate(nil, time.Now()))
}

func TestValidate_ZeroExpiry(t *testing.T) {
	v := NewValidator(nil)
	claims := &Claims{IsAdmin: true, Email: "ops@guestwave.io"}

	assert.Equal(t, ResultMalformed, v.Validate(claims, time.Now()))
}

func TestValidate_Expired(t *testing.T) {
	v := NewValidator(nil)
	now := time.Now()

	assert.Equal(t, ResultExpired, v.Validate(adminClaims(-time.Second, now), now))
}

func TestValidate_ExpiryExactlyNow(t *testing.T) {
	v := NewValidator(nil)
	now := time.Now()
	claims := adminClaims(0, now)

	assert.Equal(t, ResultExpired, v.Validate(claims, now))
}

// Expiry is checked before privilege: an expired non-admin must report
// Expired, never InsufficientPrivilege.
func TestValidate_ExpiredBeatsPrivilege(t *testing.T) {
	v := NewValidator(nil)
	now := time.Now()
	claims := adminClaims(-time.Second, now)
	claims.IsAdmin = false

	assert.Equal(t, ResultExpired, v.Validate(claims, now))
}

func TestValidate_NonAdmin(t *testing.T) {
	v := NewValidator(nil)
	now := time.Now()
	claims := adminClaims(time.Hour, now)
	claims.IsAdmin = false

	assert.Equal(t, ResultInsufficientPrivilege, v.Validate(claims, now))
}

func TestValidate_Valid(t *testing.T) {
	v := NewValidator(nil)
	now := time.Now()

	assert.Equal(t, ResultValid, v.Validate(adminClaims(time.Hour, now), now))
}

// Totality: every (claims, now) pair maps to exactly one of the four results.
func TestValidate_Totality(t *testing.T) {
	v := NewValidator(nil)
	now := time.Now()

	cases := []*Claims{
		nil,
		{},
		adminClaims(-time.Hour, now),
		adminClaims(time.Hour, now),
		func() *Claims { c := adminClaims(time.Hour, now); c.IsAdmin = false; return c }(),
	}

	known := map[Result]bool{
		ResultValid:                 true,
		ResultExpired:               true,
		ResultInsufficientPrivilege: true,
		ResultMalformed:             true,
	}
	for _, c := range cases {
		assert.True(t, known[v.Validate(c, now)])
	}
}

func TestAdminDomainPolicy(t *testing.T) {
	policy := AdminDomainPolicy([]string{"guestwave.io"})
	now := time.Now()

	tests := []struct {
		name  string
		email string
		admin bool
		want  bool
	}{
		{"admin with allowed domain", "ops@guestwave.io", true, true},
		{"admin with allowed subdomain", "ops@corp.guestwave.io", true, true},
		{"admin with other domain", "ops@example.com", true, false},
		{"admin with lookalike domain", "ops@evil-guestwave.io", true, false},
		{"non-admin with allowed domain", "viewer@guestwave.io", false, false},
		{"missing at sign", "guestwave.io", true, false},
		{"trailing at sign", "ops@", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Claims{IsAdmin: tt.admin, Email: tt.email, ExpiresAt: now.Add(time.Hour)}
			assert.Equal(t, tt.want, policy(c))
		})
	}
}

func TestAdminDomainPolicy_CaseInsensitive(t *testing.T) {
	policy := AdminDomainPolicy([]string{"GuestWave.IO"})
	c := Claims{IsAdmin: true, Email: "Ops@GUESTWAVE.io", ExpiresAt: time.Now().Add(time.Hour)}

	assert.True(t, policy(c))
}

func TestResult_Reason(t *testing.T) {
	assert.Equal(t, "Session expired", ResultExpired.Reason())
	assert.Equal(t, "Admin access required", ResultInsufficientPrivilege.Reason())
	assert.Equal(t, "Session invalid", ResultMalformed.Reason())
	assert.Empty(t, ResultValid.Reason())
}

func TestState_IsAuthenticated(t *testing.T) {
	assert.False(t, State{Status: StatusValid}.IsAuthenticated())
	assert.False(t, State{Status: StatusInvalid, Credential: &Credential{UserID: "u1"}}.IsAuthenticated())
	assert.True(t, State{Status: StatusValid, Credential: &Credential{UserID: "u1"}}.IsAuthenticated())
}
