package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("a3bb189e-8bf9-3888-9912-ace4e6543002"))
	assert.False(t, IsValidUUID(""))
	assert.False(t, IsValidUUID("not-a-uuid"))
}

func TestIsValidEnum(t *testing.T) {
	valid := []string{"drowsy", "yawn", "head_tilt"}
	assert.True(t, IsValidEnum("yawn", valid))
	assert.True(t, IsValidEnum("", valid))
	assert.False(t, IsValidEnum("blink", valid))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ten digits", "9876543210", "9876543210"},
		{"country code stripped", "+91 98765 43210", "9876543210"},
		{"punctuation stripped", "(987) 654-3210", "9876543210"},
		{"short number kept whole", "43210", "43210"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhone(tc.input))
		})
	}
}
