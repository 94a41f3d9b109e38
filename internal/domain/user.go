package domain

// User is a locally registered actor. The ID doubles as the storage key of
// the user document ("/u/<key>"); Inbox and Outbox are fixed suffixes of it
// and must never be derived any other way, or existing data becomes
// unreachable.
type User struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Username  string `json:"preferredUsername,omitempty"`
	Image     string `json:"image,omitempty"`
	Inbox     string `json:"inbox"`
	Outbox    string `json:"outbox"`
	Published string `json:"published"`
}

// Identity links one external (sub, iss) pair to a local user. Stored under
// IdentityKeyPrefix + Key; Key is the derived identity key, the only lookup
// path for the record.
type Identity struct {
	Key       string         `json:"key"`
	UserID    string         `json:"user"`
	Claims    VerifiedClaims `json:"claims"`
	Name      string         `json:"name"`
	Image     string         `json:"image,omitempty"`
	Published string         `json:"published"`
}

const (
	UserKeyPrefix     = "/u/"
	IdentityKeyPrefix = "/idents/"

	InboxSuffix  = "/inbox"
	OutboxSuffix = "/outbox"
)

// UserKey returns the storage key of a user document.
func UserKey(userID string) string { return userID }

// IdentityStorageKey returns the storage key of an identity record.
func IdentityStorageKey(identityKey string) string {
	return IdentityKeyPrefix + identityKey
}
