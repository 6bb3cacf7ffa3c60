package users_test

import (
	"testing"
	"time"

	"github.com/authcore-io/authcore/users"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := users.HashPassword("Str0ngPassword!")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$")

	require.True(t, users.CheckPasswordHash("Str0ngPassword!", hash))
	require.False(t, users.CheckPasswordHash("WrongPassword1", hash))
}

func TestCheckPasswordHashRejectsMalformed(t *testing.T) {
	require.False(t, users.CheckPasswordHash("anything", ""))
	require.False(t, users.CheckPasswordHash("anything", "$bcrypt$nope"))
	require.False(t, users.CheckPasswordHash("anything", "$argon2id$v=19$m=65536,t=3,p=2$!!!$!!!"))
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := users.HashPassword("SamePassword1")
	require.NoError(t, err)
	h2, err := users.HashPassword("SamePassword1")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Password1", false},
		{"too short", "Pa1", true},
		{"no uppercase", "password1", true},
		{"no lowercase", "PASSWORD1", true},
		{"no number", "Passwordx", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tc.password)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLocked(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	u := &users.User{}
	require.False(t, u.Locked(now))

	u.LockedUntil = &past
	require.False(t, u.Locked(now))

	u.LockedUntil = &future
	require.True(t, u.Locked(now))
}

func TestIsTrustedDevice(t *testing.T) {
	u := &users.User{TrustedDevices: []string{"dev-1"}}
	require.True(t, u.IsTrustedDevice("dev-1"))
	require.False(t, u.IsTrustedDevice("dev-2"))
	require.False(t, u.IsTrustedDevice(""))
}
