package opaque

import (
	"testing"

	"gmb-connector/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	// Matches btoa("accounts/1/locations/2").
	assert.Equal(t, "YWNjb3VudHMvMS9sb2NhdGlvbnMvMg==", Encode("accounts/1/locations/2"))
}

func TestDecode(t *testing.T) {
	raw := "accounts/1/locations/9/reviews/x~?>"
	std := Encode(raw)
	require.Contains(t, std, "+")

	tests := []struct {
		name    string
		encoded string
	}{
		{"standard", std},
		{"unpadded", trimPadding(std)},
		{"url safe", toURLSafe(std)},
		{"url safe unpadded", trimPadding(toURLSafe(std))},
		{"surrounding space", "  " + std + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.encoded)
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not base64!", "a"} {
		_, err := Decode(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	}
}

func TestDecodeAll(t *testing.T) {
	got, err := DecodeAll([]string{Encode("a/1"), Encode("b/2")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "b/2"}, got)

	_, err = DecodeAll([]string{Encode("a/1"), "%%%"})
	assert.Error(t, err)
}

func trimPadding(s string) string {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}

func toURLSafe(s string) string {
	out := []byte(s)
	for i, c := range out {
		switch c {
		case '+':
			out[i] = '-'
		case '/':
			out[i] = '_'
		}
	}
	return string(out)
}
