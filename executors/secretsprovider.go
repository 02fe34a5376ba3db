package executors

import "context"

type SecretsProvider interface {
	Init(config map[string]string) error
	GetSecret(ctx context.Context, key string) (string, error)
}
