package msgraph

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// graphDefaultScope requests all application permissions granted to the
// app registration (tenant-wide read for the scan).
const graphDefaultScope = "https://graph.microsoft.com/.default"

// AppCredential is a TokenSource backed by the OAuth2 client-credentials
// grant (app-only daemon auth, no user interaction). The underlying oauth2
// token source caches the access token and renews it silently before
// expiry. Invalidate discards the cached source so the next Token call
// performs a fresh grant — the client uses this to recover from an
// unexpected 401.
//
// The context passed to the first Token call is bound to the underlying
// oauth2 token source and must outlive it. Callers should pass a
// run-scoped or background context.
type AppCredential struct {
	cfg *clientcredentials.Config

	mu  sync.Mutex
	src oauth2.TokenSource
}

// NewAppCredential builds an AppCredential for the given Entra tenant and
// app registration.
func NewAppCredential(tenantID, clientID, clientSecret string) *AppCredential {
	return &AppCredential{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
			Scopes:       []string{graphDefaultScope},
		},
	}
}

// Token returns a valid bearer token, fetching or renewing as needed.
func (a *AppCredential) Token(ctx context.Context) (string, error) {
	a.mu.Lock()

	if a.src == nil {
		a.src = a.cfg.TokenSource(ctx)
	}

	src := a.src
	a.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("msgraph: obtaining app token: %w", err)
	}

	return tok.AccessToken, nil
}

// Invalidate discards the cached token source. The next Token call
// performs a fresh client-credentials grant.
func (a *AppCredential) Invalidate() {
	a.mu.Lock()
	a.src = nil
	a.mu.Unlock()
}
