package gateway

import (
	"errors"
	"net/http/httptest"
	"testing"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
)

func TestStaticTokenAuthValid(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Token: "secret-123", Name: "phone"}})

	info, err := auth.Authenticate("secret-123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if info.Name != "phone" {
		t.Errorf("Name = %q", info.Name)
	}
}

func TestStaticTokenAuthInvalid(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Token: "secret-123", Name: "phone"}})

	for _, tok := range []string{"wrong-token", "", "secret-12"} {
		_, err := auth.Authenticate(tok)
		if !errors.Is(err, domain.ErrGatewayAuthFailed) {
			t.Errorf("Authenticate(%q) err = %v, want ErrGatewayAuthFailed", tok, err)
		}
		if !errors.Is(err, domain.ErrAuthInvalid) {
			t.Errorf("Authenticate(%q) should also match ErrAuthInvalid", tok)
		}
	}
}

func TestStaticTokenAuthEmpty(t *testing.T) {
	auth := NewStaticTokenAuth(nil)

	if _, err := auth.Authenticate("anything"); err == nil {
		t.Fatal("expected error for empty token list")
	}
}

func TestNewAuthenticator(t *testing.T) {
	if _, ok := NewAuthenticator(config.AuthConfig{}).(OpenAuth); !ok {
		t.Error("no tokens should yield OpenAuth")
	}
	a := NewAuthenticator(config.AuthConfig{Tokens: []config.TokenConfig{{Token: "t", Name: "n"}}})
	if _, ok := a.(*StaticTokenAuth); !ok {
		t.Errorf("got %T, want *StaticTokenAuth", a)
	}
	info, err := OpenAuth{}.Authenticate("")
	if err != nil || info.Name != domain.AnonymousUserID {
		t.Errorf("OpenAuth = %v, %v", info, err)
	}
}

func TestRequestToken(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"query", "/chat?token=abc", "", "abc"},
		{"bearer", "/chat", "Bearer xyz", "xyz"},
		{"query wins", "/chat?token=abc", "Bearer xyz", "abc"},
		{"basic ignored", "/chat", "Basic Zm9v", ""},
		{"none", "/chat", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := requestToken(r); got != tt.want {
				t.Errorf("requestToken = %q, want %q", got, tt.want)
			}
		})
	}
}
