package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashToken(t *testing.T) {
	hash := HashToken("refresh-token-value")

	// SHA256 хеш всегда 64 символа (hex-encoded, 32 bytes * 2)
	assert.Len(t, hash, 64)
	assert.Regexp(t, "^[a-f0-9]{64}$", hash)

	// Детерминированность
	assert.Equal(t, hash, HashToken("refresh-token-value"))
	assert.NotEqual(t, hash, HashToken("refresh-token-other"))
}

func TestEqualHashes(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "equal", a: "abc123", b: "abc123", want: true},
		{name: "different", a: "abc123", b: "abc124", want: false},
		{name: "different length", a: "abc", b: "abcd", want: false},
		{name: "case sensitive", a: "ABC", b: "abc", want: false},
		{name: "both empty", a: "", b: "", want: false},
		{name: "one empty", a: "abc", b: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EqualHashes(tt.a, tt.b))
		})
	}
}
