package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "Abcdef1!", false},
		{"valid at max length", "Abcdefgh12!@", false},
		{"too short", "Ab1!", true},
		{"too long", "Abcdefghijk12esss!", true},
		{"missing upper", "abcdef1!", true},
		{"missing lower", "ABCDEF1!", true},
		{"missing digit", "Abcdefg!", true},
		{"missing symbol", "Abcdefg1", true},
		{"all caps with digit and symbol but no lower", "ALLCAPS123!", true},
		{"empty", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrWeakPassword)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword_MultibyteCountsAsSymbol(t *testing.T) {
	// 記号判定は英数字以外のすべて。マルチバイト文字も記号扱い
	assert.NoError(t, ValidatePassword("Abcdef1あ"))
}
