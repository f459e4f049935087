package auth

import "time"

// OperatorClaims identify the control-plane operator inside a JWT.
type OperatorClaims struct {
	Operator string `json:"operator"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token pair.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshRequest is the body of POST /refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Config holds authentication configuration.
type Config struct {
	JWTSecret            string        `json:"jwt_secret"`
	AdminPasswordHash    string        `json:"admin_password_hash"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
}

// DefaultConfig returns the default authentication configuration. The secret
// and password hash must be supplied by the deployment.
func DefaultConfig() Config {
	return Config{
		AccessTokenDuration:  12 * time.Hour,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}
}

// AuthError is a coded authentication failure.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common authentication errors
var (
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid password"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrNotConfigured      = AuthError{Code: "AUTH_NOT_CONFIGURED", Message: "authentication is not configured"}
)
