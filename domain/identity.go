package domain

// Identity is the authenticated caller supplied by the access gate.
// Every chat and group operation requires a non-zero identity.
type Identity struct {
	UserID        string
	Role          string
	EmailVerified bool
}

func (i Identity) IsZero() bool {
	return i.UserID == ""
}
