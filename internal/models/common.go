package models

//nolint:gosec // names of credential carriers, not credentials
const (
	MwUserIDKey    = "userID"
	MwSessionIDKey = "sessionID"

	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)
