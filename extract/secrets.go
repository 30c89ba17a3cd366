package extract

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cockroachdb/errors"
)

// SecretsManagerClient defines the AWS Secrets Manager operations used to
// fetch the CRM password.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretsManagerClient creates a client from the default AWS configuration
// chain (environment, shared config, instance role).
func NewSecretsManagerClient(ctx context.Context) (SecretsManagerClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "loading AWS config"), ErrConfig)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

type passwordSecret struct {
	Password string `json:"password"`
}

// ResolvePassword replaces the source password with the one stored in
// PasswordSecretARN. It does nothing when no secret is configured.
func (s *SourceConfig) ResolvePassword(ctx context.Context, client SecretsManagerClient) error {
	if s.PasswordSecretARN == "" {
		return nil
	}
	if client == nil {
		return errors.Mark(errors.New("password_secret_arn is set but no secrets client is available"), ErrConfig)
	}

	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.PasswordSecretARN),
	})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "fetching secret %s", s.PasswordSecretARN), ErrConfig)
	}
	if result.SecretString == nil {
		return errors.Mark(errors.Newf("secret %s has no string value", s.PasswordSecretARN), ErrConfig)
	}

	var secret passwordSecret
	if err := json.Unmarshal([]byte(aws.ToString(result.SecretString)), &secret); err != nil {
		return errors.Mark(errors.Wrapf(err, "decoding secret %s", s.PasswordSecretARN), ErrConfig)
	}
	if secret.Password == "" {
		return errors.Mark(errors.Newf("secret %s has no password field", s.PasswordSecretARN), ErrConfig)
	}
	s.Password = secret.Password
	return nil
}
