package marketplace

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultTokenURL is the eBay production OAuth endpoint.
	DefaultTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	// DefaultScope grants access to the public Browse APIs.
	DefaultScope = "https://api.ebay.com/oauth/api_scope"
)

// NewTokenSource returns an application token source using the client-credentials grant.
// Tokens are cached and refreshed shortly before expiry.
func NewTokenSource(ctx context.Context, clientID, clientSecret, tokenURL string, scopes ...string) oauth2.TokenSource {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return cfg.TokenSource(ctx)
}

// StaticToken wraps an already issued access token.
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}
