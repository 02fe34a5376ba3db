package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsProvider runs the OAuth2 client-credentials grant against
// the v2.0 token endpoint of an authority.
type ClientCredentialsProvider struct {
	cfg    clientcredentials.Config
	logger *logrus.Logger

	mu     sync.Mutex
	cached *oauth2.Token
}

func NewClientCredentialsProvider(cred models.Credential, logger *logrus.Logger) *ClientCredentialsProvider {
	return &ClientCredentialsProvider{
		cfg: clientcredentials.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			TokenURL:     TokenURL(cred.Authority),
			Scopes:       cred.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		logger: logger,
	}
}

// TokenURL derives the token endpoint from an authority such as
// https://login.microsoftonline.com/<tenant>/.
func TokenURL(authority string) string {
	return strings.TrimSuffix(authority, "/") + "/oauth2/v2.0/token"
}

func (p *ClientCredentialsProvider) Token(ctx context.Context) (models.AccessToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached.Valid() {
		p.logger.Debug("Reusing cached access token")
		return toAccessToken(p.cached), nil
	}

	p.logger.Info("No token available in cache, requesting a new one")
	tok, err := p.cfg.Token(ctx)
	if err != nil {
		authErr := authErrorFrom(err)
		p.logger.WithFields(logrus.Fields{
			"error":             authErr.Code,
			"error_description": authErr.Description,
			"correlation_id":    authErr.CorrelationID,
		}).Error("Token request failed")
		return models.AccessToken{}, authErr
	}
	if tok.AccessToken == "" {
		return models.AccessToken{}, &models.AuthError{Err: errors.New("token endpoint returned an empty access token")}
	}

	p.cached = tok
	p.logger.WithFields(logrus.Fields{
		"token_type": tok.Type(),
		"expires_on": tok.Expiry,
	}).Info("Access token obtained")
	return toAccessToken(tok), nil
}

func (p *ClientCredentialsProvider) String() string {
	return "ClientCredentials(token_url=" + p.cfg.TokenURL + ", client=" + p.cfg.ClientID + ")"
}

func toAccessToken(tok *oauth2.Token) models.AccessToken {
	return models.AccessToken{Value: tok.AccessToken, Type: tok.Type(), ExpiresOn: tok.Expiry}
}

// authErrorFrom pulls the standard OAuth2 error fields and the correlation id
// out of a failed token response.
func authErrorFrom(err error) *models.AuthError {
	authErr := &models.AuthError{Err: err}

	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return authErr
	}
	authErr.Code = re.ErrorCode
	authErr.Description = re.ErrorDescription

	var body struct {
		Error         string `json:"error"`
		Description   string `json:"error_description"`
		CorrelationID string `json:"correlation_id"`
	}
	if json.Unmarshal(re.Body, &body) == nil {
		if authErr.Code == "" {
			authErr.Code = body.Error
		}
		if authErr.Description == "" {
			authErr.Description = body.Description
		}
		authErr.CorrelationID = body.CorrelationID
	}
	return authErr
}
