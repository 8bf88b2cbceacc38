// Package api holds the wire types of the stats HTTP API.
package api

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// TokenResponse is returned by the token endpoint. ExpiresAt is a UTC
// epoch in seconds, null for tokens that never expire.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   *int64 `json:"expires_at"`
	TokenType   string `json:"token_type"`
}

// CreatedResponse acknowledges a stored record.
type CreatedResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// StatusResponse acknowledges an update.
type StatusResponse struct {
	Status string `json:"status"`
}
