package proxyuri

import "fmt"

// MalformedError marks a key as structurally dead — no relay should
// ever be spawned for it (spec §7, taxonomy 1).
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed proxy uri: %s", e.Reason)
}

func errMalformed(reason string) error {
	return &MalformedError{Reason: reason}
}

// IsMalformed reports whether err marks a key as structurally dead.
func IsMalformed(err error) bool {
	_, ok := err.(*MalformedError)
	return ok
}
