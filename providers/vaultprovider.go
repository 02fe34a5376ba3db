package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/hashicorp/vault-client-go/schema"
)

// VaultSecretsProvider reads client secrets from a KV v2 secret. Every key of
// the secret's data is one client secret.
type VaultSecretsProvider struct {
	client     *vault.Client
	secretPath string
	mountPath  string

	// roleID and secretID are kept for a fresh AppRole login once the
	// issued token has expired. Both are empty with a static token.
	roleID   string
	secretID string
	mu       sync.Mutex
}

// Init authenticates against Vault. A static token wins over AppRole.
//
// Recognised keys: address, ca_cert, token, role_id, secret_id, mount_path, secret_path.
func (v *VaultSecretsProvider) Init(config map[string]string) error {
	ctx := context.Background()

	opts := []vault.ClientOption{
		vault.WithAddress(config["address"]),
		vault.WithRequestTimeout(30 * time.Second),
	}
	if config["ca_cert"] != "" {
		tls := vault.TLSConfiguration{}
		tls.ServerCertificate.FromFile = config["ca_cert"]
		opts = append(opts, vault.WithTLS(tls))
	}

	client, err := vault.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}

	v.client = client
	v.mountPath = config["mount_path"]
	v.secretPath = config["secret_path"]

	if token := config["token"]; token != "" {
		if err := client.SetToken(token); err != nil {
			return fmt.Errorf("failed to set vault token: %w", err)
		}
		return nil
	}

	if config["role_id"] == "" || config["secret_id"] == "" {
		return errors.New("vault requires either a token or an approle role_id and secret_id")
	}
	v.roleID = config["role_id"]
	v.secretID = config["secret_id"]
	return v.login(ctx)
}

// login runs the AppRole login and switches the client to the issued token.
func (v *VaultSecretsProvider) login(ctx context.Context) error {
	resp, err := v.client.Auth.AppRoleLogin(
		ctx,
		schema.AppRoleLoginRequest{
			RoleId:   v.roleID,
			SecretId: v.secretID,
		},
		vault.WithMountPath("approle"),
	)
	if err != nil {
		return fmt.Errorf("vault login failed: %w", err)
	}
	if resp.Auth == nil || resp.Auth.ClientToken == "" {
		return errors.New("vault login returned no client token")
	}
	if err := v.client.SetToken(resp.Auth.ClientToken); err != nil {
		return fmt.Errorf("failed to set vault token: %w", err)
	}
	return nil
}

func (v *VaultSecretsProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if v.client == nil {
		return "", errors.New("vault secrets provider is not initialised")
	}

	secret, err := v.read(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read %s/%s from vault: %w", v.mountPath, v.secretPath, err)
	}

	raw, ok := secret.Data.Data[key]
	if !ok {
		return "", fmt.Errorf("secret %s not found in %s/%s", key, v.mountPath, v.secretPath)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("secret %s in %s/%s is not a non-empty string", key, v.mountPath, v.secretPath)
	}
	return value, nil
}

// read fetches the secret. An AppRole token that Vault no longer accepts is
// replaced by a fresh login and the read is tried once more.
func (v *VaultSecretsProvider) read(ctx context.Context) (*vault.Response[schema.KvV2ReadResponse], error) {
	secret, err := v.client.Secrets.KvV2Read(ctx, v.secretPath, vault.WithMountPath(v.mountPath))
	if err == nil || v.roleID == "" || !vault.IsErrorStatus(err, http.StatusForbidden) {
		return secret, err
	}

	v.mu.Lock()
	loginErr := v.login(ctx)
	v.mu.Unlock()
	if loginErr != nil {
		return nil, loginErr
	}
	return v.client.Secrets.KvV2Read(ctx, v.secretPath, vault.WithMountPath(v.mountPath))
}
