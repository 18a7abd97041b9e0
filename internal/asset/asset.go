// Package asset models the value types a vault can hold and dispatches
// transfers of them to the host ledger.
package asset

import (
	"fmt"
	"strconv"
	"strings"
)

// Ref is either the native currency (zero) or a fungible token id.
type Ref uint64

// Native is the sentinel for the host's native currency.
const Native Ref = 0

// Token returns the reference for fungible token id. Token(0) is Native.
func Token(id uint64) Ref { return Ref(id) }

// IsNative reports whether r is the native currency.
func (r Ref) IsNative() bool { return r == Native }

// TokenID returns the token id, zero for native.
func (r Ref) TokenID() uint64 { return uint64(r) }

func (r Ref) String() string {
	if r.IsNative() {
		return "native"
	}
	return "token:" + strconv.FormatUint(uint64(r), 10)
}

// ParseRef accepts "native", "token:<id>" or a bare id.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "" || s == "native":
		return Native, nil
	case strings.HasPrefix(s, "token:"):
		s = strings.TrimPrefix(s, "token:")
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Native, fmt.Errorf("parse asset %q: %w", s, err)
	}
	return Token(id), nil
}

// MarshalText keeps refs readable in YAML and JSON.
func (r Ref) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Ref) UnmarshalText(b []byte) error {
	parsed, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
