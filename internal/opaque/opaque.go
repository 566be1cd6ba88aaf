// Package opaque hides upstream resource names at the HTTP boundary.
//
// Encoded ids are standard base64 so browser btoa/atob round-trip them.
package opaque

import (
	"encoding/base64"
	"strings"

	"gmb-connector/internal/common/errors"
)

func Encode(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Decode accepts standard or URL-safe base64, with or without padding.
func Decode(encoded string) (string, error) {
	s := strings.TrimSpace(encoded)
	if s == "" {
		return "", errors.ValidationError("empty identifier")
	}
	s = strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimRight(s, "="))

	out, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return "", errors.ValidationError("malformed identifier")
	}
	return string(out), nil
}

// DecodeAll decodes every id, failing on the first malformed one.
func DecodeAll(encoded []string) ([]string, error) {
	out := make([]string, 0, len(encoded))
	for _, e := range encoded {
		raw, err := Decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
