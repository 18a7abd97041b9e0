package model

import "strings"

// Address identifies an account on the host ledger. The engine treats it as
// an opaque value; the empty address is never a valid party.
type Address string

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

func (a Address) String() string { return string(a) }
