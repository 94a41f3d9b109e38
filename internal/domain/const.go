package domain

const (
	RequesterUserCtxKey = "as-requesterUser"
	RequesterIdCtxKey   = "as-requesterId"
)

const (
	// BearerChallenge is the WWW-Authenticate value attached to 401 responses.
	BearerChallenge = "Bearer"
)
