package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vaultServer fakes AppRole login and one KV v2 secret. Each login issues
// a new token; only the latest one and the static token are accepted.
type vaultServer struct {
	*httptest.Server

	mu      sync.Mutex
	logins  int
	current string
}

// revoke makes Vault reject the token handed out by the last login.
func (v *vaultServer) revoke() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = ""
}

func (v *vaultServer) loginCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.logins
}

func fakeVault(t *testing.T, data map[string]any) *vaultServer {
	t.Helper()
	v := &vaultServer{}
	v.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/auth/approle/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["role_id"] != "role" || body["secret_id"] != "secret" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"errors":["invalid role or secret ID"]}`))
				return
			}
			v.mu.Lock()
			v.logins++
			v.current = fmt.Sprintf("approle-token-%d", v.logins)
			token := v.current
			v.mu.Unlock()
			fmt.Fprintf(w, `{"data":null,"auth":{"client_token":%q,"lease_duration":3600,"renewable":true}}`, token)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/kv/data/powerbi":
			token := r.Header.Get("X-Vault-Token")
			v.mu.Lock()
			accepted := token == "static-token" || (v.current != "" && token == v.current)
			v.mu.Unlock()
			if !accepted {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"errors":["permission denied"]}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"data": data, "metadata": map[string]any{"version": 1}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[]}`))
		}
	}))
	return v
}

func TestVaultSecretsProviderAppRole(t *testing.T) {
	server := fakeVault(t, map[string]any{"sp-dev_dev_client_token": "s3cr3t", "count": 3})
	defer server.Close()

	p := &VaultSecretsProvider{}
	require.NoError(t, p.Init(map[string]string{
		"address":     server.URL,
		"role_id":     "role",
		"secret_id":   "secret",
		"mount_path":  "kv",
		"secret_path": "powerbi",
	}))

	val, err := p.GetSecret(context.Background(), "sp-dev_dev_client_token")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", val)

	_, err = p.GetSecret(context.Background(), "missing")
	assert.Error(t, err)

	_, err = p.GetSecret(context.Background(), "count")
	assert.Error(t, err)
	assert.Equal(t, 1, server.loginCount())
}

func TestVaultSecretsProviderLogsInAgainWhenTokenExpires(t *testing.T) {
	server := fakeVault(t, map[string]any{"k": "v"})
	defer server.Close()

	p := &VaultSecretsProvider{}
	require.NoError(t, p.Init(map[string]string{
		"address":     server.URL,
		"role_id":     "role",
		"secret_id":   "secret",
		"mount_path":  "kv",
		"secret_path": "powerbi",
	}))
	server.revoke()

	val, err := p.GetSecret(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
	assert.Equal(t, 2, server.loginCount())
}

func TestVaultSecretsProviderStaticTokenIsNotReplaced(t *testing.T) {
	server := fakeVault(t, map[string]any{"k": "v"})
	defer server.Close()

	p := &VaultSecretsProvider{}
	require.NoError(t, p.Init(map[string]string{
		"address":     server.URL,
		"token":       "revoked-token",
		"mount_path":  "kv",
		"secret_path": "powerbi",
	}))

	_, err := p.GetSecret(context.Background(), "k")
	assert.Error(t, err)
	assert.Zero(t, server.loginCount())
}

func TestVaultSecretsProviderStaticToken(t *testing.T) {
	server := fakeVault(t, map[string]any{"k": "v"})
	defer server.Close()

	p := &VaultSecretsProvider{}
	require.NoError(t, p.Init(map[string]string{
		"address":     server.URL,
		"token":       "static-token",
		"mount_path":  "kv",
		"secret_path": "powerbi",
	}))

	val, err := p.GetSecret(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestVaultSecretsProviderInitErrors(t *testing.T) {
	server := fakeVault(t, nil)
	defer server.Close()

	p := &VaultSecretsProvider{}
	assert.Error(t, p.Init(map[string]string{"address": server.URL}))

	_, err := (&VaultSecretsProvider{}).GetSecret(context.Background(), "k")
	assert.Error(t, err)
}

func TestEnvSecretsProvider(t *testing.T) {
	env := map[string]string{}
	env["direct_key"] = "one"
	env["AIRFLOW_VAR_POWERBI_SP_BDMINTPBI_DEV_CLIENT_TOKEN"] = "two"
	p := &EnvSecretsProvider{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}
	require.NoError(t, p.Init(nil))

	val, err := p.GetSecret(context.Background(), "direct_key")
	require.NoError(t, err)
	assert.Equal(t, "one", val)

	val, err = p.GetSecret(context.Background(), "powerbi_sp-bdmintpbi_dev_client_token")
	require.NoError(t, err)
	assert.Equal(t, "two", val)

	_, err = p.GetSecret(context.Background(), "absent")
	assert.Error(t, err)
}

func TestEnvSecretsProviderUsesProcessEnvironment(t *testing.T) {
	t.Setenv("AIRFLOW_VAR_SP_ACC_CLIENT_TOKEN", "from-env")

	p := &EnvSecretsProvider{}
	require.NoError(t, p.Init(nil))
	val, err := p.GetSecret(context.Background(), "sp_acc_client_token")
	require.NoError(t, err)
	assert.Equal(t, "from-env", val)
}

func TestAirflowVariableName(t *testing.T) {
	assert.Equal(t, "AIRFLOW_VAR_POWERBI_SP_BDMINTPBI_DEV_CLIENT_TOKEN", AirflowVariableName("powerbi_sp-bdmintpbi-dev_client_token"))
}
