package dto

// RefreshReq represents the request for token refresh. The token may
// instead come from the refreshToken cookie.
type RefreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
