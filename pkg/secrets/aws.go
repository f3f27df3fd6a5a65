package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWSSecretsManager reads secret strings from AWS Secrets Manager.
type AWSSecretsManager struct {
	client *secretsmanager.Client
}

func NewAWSSecretsManager(ctx context.Context, region string) (*AWSSecretsManager, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &AWSSecretsManager{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// Get returns the string value of the secret called key.
func (m *AWSSecretsManager) Get(ctx context.Context, key string) (string, error) {
	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from aws: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", key)
	}
	return *out.SecretString, nil
}
