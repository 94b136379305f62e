// Package secrets fetches the ONTAP API credentials from AWS Secrets
// Manager.
package secrets

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/pkg/errors"
)

// Credentials reads the secret at arn and returns the values stored under
// usernameKey and passwordKey.
func Credentials(arn, region, endpoint, usernameKey, passwordKey string) (string, string, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String("https://" + endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return "", "", errors.Wrap(err, "creating secrets manager session")
	}

	out, err := secretsmanager.New(sess).GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return "", "", errors.Wrapf(err, "reading secret %s", arn)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(aws.StringValue(out.SecretString)), &values); err != nil {
		return "", "", errors.Wrapf(err, "decoding secret %s", arn)
	}
	username, ok := values[usernameKey]
	if !ok {
		return "", "", errors.Errorf("%q not found in secret %s", usernameKey, arn)
	}
	password, ok := values[passwordKey]
	if !ok {
		return "", "", errors.Errorf("%q not found in secret %s", passwordKey, arn)
	}
	return username, password, nil
}
