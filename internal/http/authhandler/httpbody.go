package authhandler

type IssueTokenBody struct {
	Username string `json:"username" binding:"required" example:"alice"`
} // @name IssueTokenRequest

type TokenResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"   example:"alice"`
	ExpiresIn int64  `json:"expires_in" example:"86400"`
} // @name TokenResponse

type StatusResponse struct {
	Enabled       bool   `json:"enabled"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty" example:"alice"`
} // @name AuthenticationStatus

type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode,omitempty" example:"BANNED"`
} // @name AuthErrorResponse
