package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
)

// ClientInfo holds metadata about an authenticated chat client.
type ClientInfo struct {
	Name string
}

// Authenticator validates incoming chat connections.
type Authenticator interface {
	Authenticate(token string) (*ClientInfo, error)
}

type authEntry struct {
	token []byte
	info  *ClientInfo
}

// StaticTokenAuth authenticates clients against a static token list
// using constant-time comparison to prevent timing attacks.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from configured tokens.
func NewStaticTokenAuth(tokens []config.TokenConfig) *StaticTokenAuth {
	a := &StaticTokenAuth{
		entries: make([]authEntry, len(tokens)),
	}
	for i, t := range tokens {
		a.entries[i] = authEntry{
			token: []byte(t.Token),
			info:  &ClientInfo{Name: t.Name},
		}
	}
	return a
}

// Authenticate returns client info if the token is valid.
func (s *StaticTokenAuth) Authenticate(token string) (*ClientInfo, error) {
	if token == "" {
		return nil, domain.ErrGatewayAuthFailed
	}
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			return e.info, nil
		}
	}
	return nil, domain.ErrGatewayAuthFailed
}

// OpenAuth admits every client. It is used when no tokens are configured,
// matching the unauthenticated chat endpoint of the mobile app.
type OpenAuth struct{}

// Authenticate always succeeds.
func (OpenAuth) Authenticate(string) (*ClientInfo, error) {
	return &ClientInfo{Name: domain.AnonymousUserID}, nil
}

// NewAuthenticator returns StaticTokenAuth when tokens are configured and
// OpenAuth otherwise.
func NewAuthenticator(cfg config.AuthConfig) Authenticator {
	if len(cfg.Tokens) == 0 {
		return OpenAuth{}
	}
	return NewStaticTokenAuth(cfg.Tokens)
}

// requestToken reads the token from ?token= or an Authorization bearer header.
func requestToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return ""
}
