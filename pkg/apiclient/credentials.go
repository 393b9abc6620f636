package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/shieldops/backend/internal/models"
)

// Credentials is the token pair a client holds between requests.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// CredentialProvider is one place credentials may live. Providers are
// consulted in order; the first one that reports ok wins.
type CredentialProvider interface {
	Load() (Credentials, bool)
}

// MemoryStore is the primary credential location. It is also where refreshed
// tokens are written back, regardless of which provider supplied them.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Credentials, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds.AccessToken == "" && m.creds.RefreshToken == "" {
		return Credentials{}, false
	}
	return m.creds, true
}

func (m *MemoryStore) Save(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
}

// SaveAccessToken replaces only the access token, keeping the refresh token.
func (m *MemoryStore) SaveAccessToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds.AccessToken = token
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
}

// CookieProvider reads tokens out of a cookie jar, the fallback for clients
// that authenticated through the server-rendered flow and whose in-memory
// store is empty (fresh process, page reload).
type CookieProvider struct {
	jar  http.CookieJar
	base *url.URL
}

func NewCookieProvider(jar http.CookieJar, baseURL string) (*CookieProvider, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &CookieProvider{jar: jar, base: base}, nil
}

func (p *CookieProvider) Load() (Credentials, bool) {
	if p.jar == nil {
		return Credentials{}, false
	}

	var creds Credentials
	for _, cookie := range p.jar.Cookies(p.base) {
		switch cookie.Name {
		case models.AccessTokenCookie:
			creds.AccessToken = cookie.Value
		case models.RefreshTokenCookie:
			creds.RefreshToken = cookie.Value
		}
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return Credentials{}, false
	}
	return creds, true
}
