package credentials

import (
	"os"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a provider has no value for a key.
var ErrNotFound = errors.New("credential not found")

// DataTokenKey names the bearer token sent to a protected holdings endpoint.
const DataTokenKey = "TOPPICK_DATA_TOKEN"

// Provider defines the interface for credential providers
type Provider interface {
	GetCredential(key string) (string, error)
}

// EnvProvider retrieves credentials from environment variables
type EnvProvider struct{}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (p *EnvProvider) GetCredential(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", errors.Wrap(ErrNotFound, key)
	}
	return value, nil
}

// StaticProvider for testing with hardcoded credentials
type StaticProvider struct {
	credentials map[string]string
}

func NewStaticProvider(creds map[string]string) *StaticProvider {
	return &StaticProvider{
		credentials: creds,
	}
}

func (p *StaticProvider) GetCredential(key string) (string, error) {
	value, ok := p.credentials[key]
	if !ok || value == "" {
		return "", errors.Wrap(ErrNotFound, key)
	}
	return value, nil
}

// Lookup returns the credential for key, or "" when p is nil or has none.
func Lookup(p Provider, key string) string {
	if p == nil {
		return ""
	}
	v, err := p.GetCredential(key)
	if err != nil {
		return ""
	}
	return v
}
