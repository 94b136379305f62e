package config

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func requiredEnv(t *testing.T) {
	t.Setenv("OntapAdminServer", "fsxn1.example.com")
	t.Setenv("s3BucketName", "state-bucket")
	t.Setenv("s3BucketRegion", "us-east-1")
}

func TestLoadRequiresAdminServer(t *testing.T) {
	t.Setenv("OntapAdminServer", "")
	t.Setenv("s3BucketName", "state-bucket")
	t.Setenv("s3BucketRegion", "us-east-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OntapAdminServer")
}

func TestLoadBucketNameFromArn(t *testing.T) {
	t.Setenv("OntapAdminServer", "fsxn1.example.com")
	t.Setenv("s3BucketName", "")
	t.Setenv("s3BucketArn", "arn:aws:s3:::state-bucket")
	t.Setenv("s3BucketRegion", "us-east-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "state-bucket", cfg.S3BucketName)
}

func TestLoadDefaultsConfigFilename(t *testing.T) {
	requiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fsxn1.example.com-config", cfg.ConfigFilename)
}

func TestMergeEnvironmentWins(t *testing.T) {
	requiredEnv(t)
	t.Setenv("logLevel", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	object := strings.NewReader(strings.Join([]string{
		`export snsTopicArn="arn:aws:sns:us-west-2:123456789012:alerts"  # alert topic`,
		`logLevel=warn`,
		`unknownKnob=7`,
		``,
		`# a full-line comment`,
		`slackChannel = #fsx-alerts`,
	}, "\n"))
	require.NoError(t, cfg.Merge(object, testLogger()))

	assert.Equal(t, "arn:aws:sns:us-west-2:123456789012:alerts", cfg.SnsTopicArn)
	assert.Equal(t, "debug", cfg.LogLevel, "environment value must not be overwritten")
	// The trailing-comment strip also eats "#fsx-alerts", matching shell
	// semantics for an unquoted value.
	assert.Empty(t, cfg.SlackChannel)
}

func TestMergeQuotedValue(t *testing.T) {
	requiredEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.Merge(strings.NewReader(`secretUsernameKey="username"`), testLogger()))
	assert.Equal(t, "username", cfg.SecretUsernameKey)
}

func TestFinishDefaultsStateFilenames(t *testing.T) {
	requiredEnv(t)
	t.Setenv("snsTopicArn", "arn:aws:sns:us-west-2:123456789012:alerts")
	t.Setenv("secretArn", "arn:aws:secretsmanager:us-west-2:123456789012:secret:fsxn-abc123")
	t.Setenv("secretUsernameKey", "username")
	t.Setenv("secretPasswordKey", "password")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Finish())

	assert.Equal(t, "fsxn1.example.com-conditions", cfg.ConditionsFilename)
	assert.Equal(t, "fsxn1.example.com-systemStatus", cfg.SystemStatusFilename)
	assert.Equal(t, "fsxn1.example.com-emsEvents", cfg.EmsEventsFilename)
	assert.Equal(t, "fsxn1.example.com-vserverEvents", cfg.VserverEventsFilename)
	assert.Equal(t, "secretsmanager.us-west-2.amazonaws.com", cfg.SecretsManagerEndpoint)
	assert.Equal(t, "sns.us-west-2.amazonaws.com", cfg.SnsEndpoint)
}

func TestFinishReportsMissingParameter(t *testing.T) {
	requiredEnv(t)
	t.Setenv("snsTopicArn", "arn:aws:sns:us-west-2:123456789012:alerts")
	t.Setenv("secretArn", "arn:aws:secretsmanager:us-west-2:123456789012:secret:fsxn-abc123")
	t.Setenv("secretUsernameKey", "username")

	cfg, err := Load()
	require.NoError(t, err)
	err = cfg.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secretPasswordKey")
}

func TestCloudWatchLogGroupName(t *testing.T) {
	cfg := &Config{CloudWatchLogGroupArn: "arn:aws:logs:us-east-1:123456789012:log-group:/fsx/alerts:*"}
	assert.Equal(t, "/fsx/alerts", cfg.CloudWatchLogGroupName())

	cfg.CloudWatchLogGroupArn = "arn:aws:logs:us-east-1:123456789012:log-group:/fsx/alerts"
	assert.Equal(t, "/fsx/alerts", cfg.CloudWatchLogGroupName())
}

func TestARNRegion(t *testing.T) {
	assert.Equal(t, "eu-central-1", ARNRegion("arn:aws:sns:eu-central-1:123456789012:alerts"))
	assert.Equal(t, "", ARNRegion("not-an-arn"))
}
