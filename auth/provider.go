package auth

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"golang.org/x/oauth2"
)

// TokenProvider acquires access tokens with the client-credentials grant.
// Implementations reuse a cached token while it is still valid.
type TokenProvider interface {
	Token(ctx context.Context) (models.AccessToken, error)

	// String describes the provider for logs. It must not include secrets.
	String() string
}

// NewTokenProvider builds the provider named by kind ("oauth2" or "azidentity").
func NewTokenProvider(kind string, cred models.Credential, logger *logrus.Logger) (TokenProvider, error) {
	switch kind {
	case "", "oauth2":
		return NewClientCredentialsProvider(cred, logger), nil
	case "azidentity":
		return NewAzureIdentityProvider(cred, logger)
	default:
		return nil, fmt.Errorf("unsupported token provider %s", kind)
	}
}

// NewTokenSource adapts a TokenProvider to an oauth2.TokenSource. initial is
// served until it is about to expire; after that p is asked again, so a
// long-running poll keeps a valid bearer token.
func NewTokenSource(ctx context.Context, p TokenProvider, initial models.AccessToken) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(toOAuth2Token(initial), &providerSource{ctx: ctx, provider: p})
}

type providerSource struct {
	ctx      context.Context
	provider TokenProvider
}

func (s *providerSource) Token() (*oauth2.Token, error) {
	tok, err := s.provider.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return toOAuth2Token(tok), nil
}

func toOAuth2Token(tok models.AccessToken) *oauth2.Token {
	if tok.Value == "" {
		return nil
	}
	return &oauth2.Token{AccessToken: tok.Value, TokenType: tok.Type, Expiry: tok.ExpiresOn}
}
