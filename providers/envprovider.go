package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// AirflowVariablePrefix is how Airflow exposes Variables through the environment.
const AirflowVariablePrefix = "AIRFLOW_VAR_"

// EnvSecretsProvider reads secrets from the process environment.
type EnvSecretsProvider struct {
	lookup func(string) (string, bool)
}

func (e *EnvSecretsProvider) Init(config map[string]string) error {
	if e.lookup == nil {
		e.lookup = os.LookupEnv
	}
	return nil
}

// GetSecret tries the key verbatim, then its Airflow Variable form.
func (e *EnvSecretsProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if e.lookup == nil {
		e.lookup = os.LookupEnv
	}
	for _, name := range []string{key, AirflowVariableName(key)} {
		if val, ok := e.lookup(name); ok && val != "" {
			return val, nil
		}
	}
	return "", fmt.Errorf("secret %s not found in environment (also tried %s)", key, AirflowVariableName(key))
}

// AirflowVariableName converts a variable key to AIRFLOW_VAR_<KEY>, mapping
// everything that is not a letter or digit to an underscore.
func AirflowVariableName(key string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return AirflowVariablePrefix + mapped
}
