package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// AzureKeyVaultManager reads the latest version of secrets from an Azure Key
// Vault.
type AzureKeyVaultManager struct {
	client *azsecrets.Client
}

func NewAzureKeyVaultManager(vaultURL string) (*AzureKeyVaultManager, error) {
	if vaultURL == "" {
		return nil, fmt.Errorf("azure key vault url is required")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create default azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure secrets client: %w", err)
	}
	return &AzureKeyVaultManager{client: client}, nil
}

func (m *AzureKeyVaultManager) Get(ctx context.Context, key string) (string, error) {
	resp, err := m.client.GetSecret(ctx, azureSecretName(key), "", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get secret from azure: %w", err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %s has no value", key)
	}
	return *resp.Value, nil
}

// azureSecretName maps a key like "otree_db.password" to a Key Vault secret
// name, which may only hold letters, digits and dashes.
func azureSecretName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, key)
}
