package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
)

// AzureIdentityProvider uses azidentity's ClientSecretCredential, whose MSAL
// client keeps an in-memory token cache and serves silent lookups from it.
type AzureIdentityProvider struct {
	cred     *azidentity.ClientSecretCredential
	scopes   []string
	tenantID string
	clientID string
	logger   *logrus.Logger
}

func NewAzureIdentityProvider(c models.Credential, logger *logrus.Logger) (*AzureIdentityProvider, error) {
	return newAzureIdentityProvider(c, logger, azcore.ClientOptions{})
}

func newAzureIdentityProvider(c models.Credential, logger *logrus.Logger, clientOpts azcore.ClientOptions) (*AzureIdentityProvider, error) {
	host, tenantID, err := SplitAuthority(c.Authority)
	if err != nil {
		return nil, &models.AuthError{Err: err}
	}

	clientOpts.Cloud = cloud.Configuration{ActiveDirectoryAuthorityHost: host}
	// Instance discovery only knows the Microsoft clouds.
	opts := &azidentity.ClientSecretCredentialOptions{
		ClientOptions:            clientOpts,
		DisableInstanceDiscovery: !knownAuthorityHost(host),
	}
	cred, err := azidentity.NewClientSecretCredential(tenantID, c.ClientID, c.ClientSecret, opts)
	if err != nil {
		return nil, &models.AuthError{Err: fmt.Errorf("failed to create client secret credential: %w", err)}
	}

	return &AzureIdentityProvider{
		cred:     cred,
		scopes:   c.Scopes,
		tenantID: tenantID,
		clientID: c.ClientID,
		logger:   logger,
	}, nil
}

func knownAuthorityHost(host string) bool {
	for _, c := range []cloud.Configuration{cloud.AzurePublic, cloud.AzureChina, cloud.AzureGovernment} {
		if strings.EqualFold(c.ActiveDirectoryAuthorityHost, host) {
			return true
		}
	}
	return false
}

// SplitAuthority separates https://host/<tenant>/ into the authority host and tenant id.
func SplitAuthority(authority string) (host, tenantID string, err error) {
	u, err := url.Parse(authority)
	if err != nil {
		return "", "", fmt.Errorf("invalid authority %q: %w", authority, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("invalid authority %q: scheme and host are required", authority)
	}
	tenantID = strings.Trim(u.Path, "/")
	if tenantID == "" || strings.Contains(tenantID, "/") {
		return "", "", fmt.Errorf("invalid authority %q: expected exactly one tenant path segment", authority)
	}
	return u.Scheme + "://" + u.Host + "/", tenantID, nil
}

func (p *AzureIdentityProvider) Token(ctx context.Context) (models.AccessToken, error) {
	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		p.logger.WithError(err).WithField("tenant", p.tenantID).Error("Token request failed")
		return models.AccessToken{}, &models.AuthError{Err: err}
	}
	p.logger.WithField("expires_on", tok.ExpiresOn).Info("Access token obtained")
	return models.AccessToken{Value: tok.Token, Type: "Bearer", ExpiresOn: tok.ExpiresOn}, nil
}

func (p *AzureIdentityProvider) String() string {
	return fmt.Sprintf("AzureIdentity(tenant=%s, client=%s)", p.tenantID, p.clientID)
}
