package models

// Identity is a caller identity that has already been verified by the
// transport (a token subject or a Telegram account).
type Identity string

func (i Identity) String() string {
	return string(i)
}

func (i Identity) IsEmpty() bool {
	return i == ""
}
