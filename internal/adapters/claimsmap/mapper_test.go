package claimsmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresAdminAndEmailPaths(t *testing.T) {
	_, err := New(Paths{Email: "email"})
	assert.Error(t, err)

	_, err = New(Paths{Admin: "is_admin"})
	assert.Error(t, err)

	_, err = New(Paths{Admin: "is_admin", Email: "email"})
	assert.NoError(t, err)
}

func TestNew_RejectsInvalidExpressions(t *testing.T) {
	_, err := New(Paths{Admin: "][", Email: "email"})
	assert.Error(t, err)

	_, err = New(Paths{Admin: "is_admin", Email: "email", Role: "]["})
	assert.Error(t, err)
}

func TestMap_FlatClaims(t *testing.T) {
	m, err := New(Paths{Admin: "is_admin", Email: "email", Role: "role"})
	require.NoError(t, err)

	now := time.Now()
	claims := m.Map(map[string]any{
		"is_admin": true,
		"email":    "ops@guestwave.io",
		"role":     "operator",
	}, now, now.Add(time.Hour))

	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "ops@guestwave.io", claims.Email)
	assert.Equal(t, "operator", claims.Role)
	assert.Equal(t, now, claims.IssuedAt)
	assert.Equal(t, now.Add(time.Hour), claims.ExpiresAt)
}

func TestMap_NestedClaims(t *testing.T) {
	m, err := New(Paths{
		Admin: "resource_access.console.is_admin",
		Email: "profile.email",
	})
	require.NoError(t, err)

	now := time.Now()
	claims := m.Map(map[string]any{
		"resource_access": map[string]any{
			"console": map[string]any{"is_admin": true},
		},
		"profile": map[string]any{"email": "ops@guestwave.io"},
	}, now, now.Add(time.Hour))

	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "ops@guestwave.io", claims.Email)
	assert.Empty(t, claims.Role)
}

func TestMap_AdminValueShapes(t *testing.T) {
	m, err := New(Paths{Admin: "is_admin", Email: "email"})
	require.NoError(t, err)

	now := time.Now()
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"string true", "true", true},
		{"string TRUE", "TRUE", true},
		{"string one", "1", true},
		{"string false", "false", false},
		{"number one", float64(1), true},
		{"number zero", float64(0), false},
		{"missing", nil, false},
		{"unexpected shape", []any{"admin"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"email": "x@y.z"}
			if tt.value != nil {
				raw["is_admin"] = tt.value
			}
			assert.Equal(t, tt.want, m.Map(raw, now, now.Add(time.Hour)).IsAdmin)
		})
	}
}

func TestMap_EpochClaimsOverrideDefaults(t *testing.T) {
	m, err := New(Paths{Admin: "is_admin", Email: "email"})
	require.NoError(t, err)

	iat := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	exp := iat.Add(30 * time.Minute)
	fallback := time.Now()

	claims := m.Map(map[string]any{
		"is_admin": true,
		"email":    "ops@guestwave.io",
		"iat":      float64(iat.Unix()),
		"exp":      float64(exp.Unix()),
	}, fallback, fallback.Add(time.Hour))

	assert.True(t, claims.IssuedAt.Equal(iat))
	assert.True(t, claims.ExpiresAt.Equal(exp))
}
