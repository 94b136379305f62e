package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds every runtime setting for a poll cycle. All values are
// string-valued environment inputs; the optional per-cluster config object in
// the state bucket can fill in anything the environment left unset.
type Config struct {
	OntapAdminServer string
	S3BucketName     string
	S3BucketRegion   string

	SnsTopicArn       string
	SecretArn         string
	SecretUsernameKey string
	SecretPasswordKey string

	// Per-cluster state object names. Defaulted from OntapAdminServer when
	// not configured.
	ConfigFilename          string
	ConditionsFilename      string
	SystemStatusFilename    string
	EmsEventsFilename       string
	SmEventsFilename        string
	SmRelationshipsFilename string
	StorageEventsFilename   string
	QuotaEventsFilename     string
	VserverEventsFilename   string

	// Optional settings.
	SecretsManagerEndpoint string
	SnsEndpoint            string
	CloudWatchLogsEndpoint string
	CloudWatchLogGroupArn  string
	SyslogHost             string
	AwsAccountID           string
	SlackToken             string
	SlackChannel           string
	HistoryDBPath          string
	LogLevel               string
}

// envNames maps the environment variable name of each setting to its field.
// The names match what the deployment templates set, so they are not
// Go-styled.
func (c *Config) envNames() map[string]*string {
	return map[string]*string{
		"OntapAdminServer":               &c.OntapAdminServer,
		"s3BucketName":                   &c.S3BucketName,
		"s3BucketRegion":                 &c.S3BucketRegion,
		"snsTopicArn":                    &c.SnsTopicArn,
		"secretArn":                      &c.SecretArn,
		"secretUsernameKey":              &c.SecretUsernameKey,
		"secretPasswordKey":              &c.SecretPasswordKey,
		"configFilename":                 &c.ConfigFilename,
		"conditionsFilename":             &c.ConditionsFilename,
		"systemStatusFilename":           &c.SystemStatusFilename,
		"emsEventsFilename":              &c.EmsEventsFilename,
		"smEventsFilename":               &c.SmEventsFilename,
		"smRelationshipsFilename":        &c.SmRelationshipsFilename,
		"storageEventsFilename":          &c.StorageEventsFilename,
		"quotaEventsFilename":            &c.QuotaEventsFilename,
		"vserverEventsFilename":          &c.VserverEventsFilename,
		"secretsManagerEndPointHostname": &c.SecretsManagerEndpoint,
		"snsEndPointHostname":            &c.SnsEndpoint,
		"cloudWatchLogsEndPointHostname": &c.CloudWatchLogsEndpoint,
		"cloudWatchLogGroupArn":          &c.CloudWatchLogGroupArn,
		"syslogIP":                       &c.SyslogHost,
		"awsAccountId":                   &c.AwsAccountID,
		"slackToken":                     &c.SlackToken,
		"slackChannel":                   &c.SlackChannel,
		"historyDBPath":                  &c.HistoryDBPath,
		"logLevel":                       &c.LogLevel,
	}
}

// optionalNames are settings that may stay empty after defaulting.
var optionalNames = map[string]bool{
	"secretsManagerEndPointHostname": true,
	"snsEndPointHostname":            true,
	"cloudWatchLogsEndPointHostname": true,
	"cloudWatchLogGroupArn":          true,
	"syslogIP":                       true,
	"awsAccountId":                   true,
	"slackToken":                     true,
	"slackChannel":                   true,
	"historyDBPath":                  true,
	"logLevel":                       true,
	"configFilename":                 true,
}

var requiredNames = []string{"OntapAdminServer", "s3BucketName", "s3BucketRegion"}

// Load reads the environment. Only the settings needed to reach the state
// bucket are validated here; everything else can still arrive via the config
// object, checked later by Finish.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	cfg := &Config{}
	for name, field := range cfg.envNames() {
		// Bind the exact name: AutomaticEnv alone upper-cases the key, which
		// misses the mixed-case deployment variable names.
		v.BindEnv(name, name)
		*field = v.GetString(name)
	}
	// CloudFormation passes the bucket ARN; the region is not part of it.
	if cfg.S3BucketName == "" {
		v.BindEnv("s3BucketArn", "s3BucketArn")
		if arn := v.GetString("s3BucketArn"); arn != "" {
			parts := strings.Split(arn, ":")
			cfg.S3BucketName = parts[len(parts)-1]
		}
	}

	names := cfg.envNames()
	for _, name := range requiredNames {
		if *names[name] == "" {
			return nil, errors.Errorf("missing required environment variable %q", name)
		}
	}
	if cfg.ConfigFilename == "" {
		cfg.ConfigFilename = cfg.OntapAdminServer + "-config"
	}
	return cfg, nil
}

// Merge applies a key=value config object. Environment settings win: a key is
// only taken when its field is still empty. Lines may carry an "export "
// prefix, trailing comments, and quoting.
func (c *Config) Merge(r io.Reader, log *logrus.Logger) error {
	names := c.envNames()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), "export ")
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.ReplaceAll(strings.TrimSpace(line), `"`, "")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if value == "" {
			log.Warnf("empty value for config key %q, ignored", key)
			continue
		}
		field, known := names[key]
		if !known {
			log.Warnf("unknown config parameter %q", key)
			continue
		}
		if *field == "" {
			*field = value
		}
	}
	return errors.Wrap(scanner.Err(), "reading config object")
}

// Finish fills in computed defaults and checks that every non-optional
// setting ended up with a value.
func (c *Config) Finish() error {
	suffixes := map[string]*string{
		"conditions":      &c.ConditionsFilename,
		"systemStatus":    &c.SystemStatusFilename,
		"emsEvents":       &c.EmsEventsFilename,
		"smEvents":        &c.SmEventsFilename,
		"smRelationships": &c.SmRelationshipsFilename,
		"storageEvents":   &c.StorageEventsFilename,
		"quotaEvents":     &c.QuotaEventsFilename,
		"vserverEvents":   &c.VserverEventsFilename,
	}
	for suffix, field := range suffixes {
		if *field == "" {
			*field = c.OntapAdminServer + "-" + suffix
		}
	}

	if c.SecretArn != "" && c.SecretsManagerEndpoint == "" {
		c.SecretsManagerEndpoint = fmt.Sprintf("secretsmanager.%s.amazonaws.com", ARNRegion(c.SecretArn))
	}
	if c.SnsTopicArn != "" && c.SnsEndpoint == "" {
		c.SnsEndpoint = fmt.Sprintf("sns.%s.amazonaws.com", ARNRegion(c.SnsTopicArn))
	}
	if c.CloudWatchLogGroupArn != "" && c.CloudWatchLogsEndpoint == "" {
		c.CloudWatchLogsEndpoint = fmt.Sprintf("logs.%s.amazonaws.com", ARNRegion(c.CloudWatchLogGroupArn))
	}

	for name, field := range c.envNames() {
		if *field == "" && !optionalNames[name] {
			return errors.Errorf("missing configuration parameter %q", name)
		}
	}
	return nil
}

// CloudWatchLogGroupName extracts the log group name from its ARN. Log group
// ARNs may end in ":*", which is not part of the name.
func (c *Config) CloudWatchLogGroupName() string {
	arn := c.CloudWatchLogGroupArn
	parts := strings.Split(arn, ":")
	if strings.HasSuffix(arn, ":*") {
		return parts[len(parts)-2]
	}
	return parts[len(parts)-1]
}

// ARNRegion extracts the region field from an AWS ARN.
func ARNRegion(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) > 3 {
		return parts[3]
	}
	return ""
}
