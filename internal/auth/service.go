package auth

// Service authenticates the single control-plane operator against a bcrypt
// hash and issues bearer tokens. When no password hash is configured the
// service refuses every login rather than running open.
type Service struct {
	cfg Config
	jwt *JWTManager
}

// NewService creates the authentication service.
func NewService(cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.AccessTokenDuration <= 0 {
		cfg.AccessTokenDuration = defaults.AccessTokenDuration
	}
	if cfg.RefreshTokenDuration <= 0 {
		cfg.RefreshTokenDuration = defaults.RefreshTokenDuration
	}
	return &Service{
		cfg: cfg,
		jwt: NewJWTManager(cfg.JWTSecret, cfg.AccessTokenDuration, cfg.RefreshTokenDuration),
	}
}

// Enabled reports whether authentication is configured. Routes stay
// unprotected when it is not, which is only acceptable for local use.
func (s *Service) Enabled() bool {
	return s.cfg.JWTSecret != "" && s.cfg.AdminPasswordHash != ""
}

// Login verifies the operator password and returns a bearer token.
func (s *Service) Login(password string) (*LoginResponse, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	if !VerifyPassword(password, s.cfg.AdminPasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(OperatorClaims{Operator: "admin"})
}

// Refresh exchanges a valid refresh token for a fresh token pair.
func (s *Service) Refresh(refreshToken string) (*LoginResponse, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(*claims)
}

func (s *Service) issueTokens(claims OperatorClaims) (*LoginResponse, error) {
	access, err := s.jwt.GenerateAccessToken(claims)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.GenerateRefreshToken(claims)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.jwt.GetAccessTokenDuration(),
	}, nil
}

// JWT exposes the token manager for middleware wiring.
func (s *Service) JWT() *JWTManager {
	return s.jwt
}
