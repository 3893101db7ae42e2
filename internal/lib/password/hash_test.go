package password

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "regular password", password: "password123"},
		{name: "password with special chars", password: "p@ssw0rd!@#$%^&*()"},
		{name: "cyrillic password", password: "пароль2024"},
		{name: "short password", password: "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotHash, err := GetHash(tt.password)
			require.NoError(t, err)
			assert.NotEmpty(t, gotHash)
			assert.NotEqual(t, tt.password, gotHash)
			assert.NoError(t, CompareHash(gotHash, tt.password))
		})
	}
}

func TestCompareHash(t *testing.T) {
	correctHash, err := GetHash("correct_password")
	require.NoError(t, err)

	tests := []struct {
		name         string
		hash         string
		password     string
		wantMismatch bool
		wantErr      bool
	}{
		{name: "correct password", hash: correctHash, password: "correct_password"},
		{name: "wrong password", hash: correctHash, password: "wrong_password", wantErr: true, wantMismatch: true},
		{name: "empty password", hash: correctHash, password: "", wantErr: true, wantMismatch: true},
		{name: "broken hash", hash: "not-a-bcrypt-hash", password: "correct_password", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CompareHash(tt.hash, tt.password)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMismatch, errors.Is(err, ErrMismatch))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate("12345"), ErrTooShort)
	assert.ErrorIs(t, Validate("пять"), ErrTooShort)
	assert.NoError(t, Validate("123456"))
	assert.NoError(t, Validate("шесть!"))
}

func TestTemporary(t *testing.T) {
	first := Temporary()
	second := Temporary()

	assert.Len(t, first, 8)
	assert.Len(t, second, 8)
	assert.NotEqual(t, first, second)
	assert.NoError(t, Validate(first))
}
