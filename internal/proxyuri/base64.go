package proxyuri

import (
	"encoding/base64"
	"strings"
)

// decodeBase64Tolerant tries the standard alphabet, then the URL-safe
// one, padding to a multiple of 4 first — the ambiguity spec §4.A and
// §9 call out explicitly ("both alphabets must be tried with padding
// normalized").
func decodeBase64Tolerant(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	padded := pad(s)

	if b, err := base64.StdEncoding.DecodeString(padded); err == nil {
		return b, nil
	}
	if b, err := base64.URLEncoding.DecodeString(padded); err == nil {
		return b, nil
	}
	// Some producers omit padding entirely and use raw encodings.
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// DecodeBase64Tolerant exposes decodeBase64Tolerant for callers outside
// this package that face the same alphabet ambiguity — the cascading
// ingester unwrapping a whole feed body (spec §4.H step 2).
func DecodeBase64Tolerant(s string) ([]byte, error) {
	return decodeBase64Tolerant(s)
}

func pad(s string) string {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return s
}
