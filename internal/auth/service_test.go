package auth

import (
	"errors"
	"testing"
	"time"
)

func testService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return NewService(Config{
		JWTSecret:           "test-secret",
		AdminPasswordHash:   hash,
		AccessTokenDuration: time.Hour,
	})
}

func TestLoginSuccess(t *testing.T) {
	s := testService(t)

	resp, err := s.Login("correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Errorf("response = %+v", resp)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d, want 3600", resp.ExpiresIn)
	}

	claims, err := s.JWT().ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.Operator != "admin" {
		t.Errorf("operator = %q, want admin", claims.Operator)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	s := testService(t)

	resp, err := s.Login("correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.RefreshToken == "" {
		t.Fatal("login returned no refresh token")
	}

	refreshed, err := s.Refresh(resp.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Errorf("response = %+v", refreshed)
	}

	// Tokens are not interchangeable across audiences.
	if _, err := s.JWT().ValidateAccessToken(resp.RefreshToken); err == nil {
		t.Error("refresh token passed access validation")
	}
	if _, err := s.Refresh(resp.AccessToken); err == nil {
		t.Error("access token passed refresh validation")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s := testService(t)
	if _, err := s.Login("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnconfigured(t *testing.T) {
	s := NewService(Config{})
	if s.Enabled() {
		t.Error("empty config reported enabled")
	}
	if _, err := s.Login("anything"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	s := testService(t)
	if _, err := s.JWT().ValidateAccessToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	s := testService(t)
	other := NewJWTManager("other-secret", time.Hour, 24*time.Hour)
	token, err := other.GenerateAccessToken(OperatorClaims{Operator: "admin"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := s.JWT().ValidateAccessToken(token); err == nil {
		t.Error("accepted a token signed with a different secret")
	}
}
