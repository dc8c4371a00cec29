package pin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{" 12345", false},
		{"12345\n", false},
		{"١٢٣٤٥٦", false}, // non-ASCII digits
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidCode(tt.code), "code %q", tt.code)
	}
}

func TestRequestReply(t *testing.T) {
	assert.Equal(t, "WHO_HAS_PIN 123456", Request("123456"))
	assert.Equal(t, "I_HAVE_PIN HostA", Reply("HostA"))

	label, ok := ParseReply([]byte("I_HAVE_PIN HostA\n"))
	assert.True(t, ok)
	assert.Equal(t, "HostA", label)

	_, ok = ParseReply([]byte("WHO_HAS_PIN 123456"))
	assert.False(t, ok)
	_, ok = ParseReply([]byte("I_HAVE_PINX"))
	assert.False(t, ok)
}

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.True(t, ValidCode(code), "generated %q", code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
