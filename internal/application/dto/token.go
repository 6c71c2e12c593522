package dto

// TokenPair is the result of every issuance path: login, refresh
// redemption, and authorization-code exchange.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// APITokenRequest carries the claims for a custom API token minted by an
// authorized operator.
type APITokenRequest struct {
	Subject   string   `json:"sub"`
	Audience  string   `json:"aud,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
	ExpiresIn int64    `json:"expires_in"`
}
