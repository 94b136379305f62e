package commands

import (
	"log/syslog"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logrussyslog "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/spf13/cobra"

	"github.com/ontapmon/internal/alert"
	"github.com/ontapmon/internal/config"
	"github.com/ontapmon/internal/history"
	"github.com/ontapmon/internal/monitor"
	"github.com/ontapmon/internal/ontap"
	"github.com/ontapmon/internal/secrets"
	"github.com/ontapmon/internal/store"
)

// NewRunCommand builds the run command, which executes one poll cycle
// against the configured cluster.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one monitoring poll cycle",
		Long: `Run polls the configured ONTAP cluster once, evaluates the alerting
rules against its state, and publishes alerts for any new conditions. It is
meant to be invoked on a schedule; deduplication state is kept in the
configured S3 bucket between invocations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			st, err := store.NewS3(cfg.S3BucketName, cfg.S3BucketRegion)
			if err != nil {
				return err
			}
			// The optional per-cluster config object fills in whatever
			// the environment left unset.
			if text, found, err := st.GetText(cfg.ConfigFilename); err != nil {
				return err
			} else if found {
				if err := cfg.Merge(strings.NewReader(text), log); err != nil {
					return err
				}
			}
			if err := cfg.Finish(); err != nil {
				return err
			}

			username, password, err := secrets.Credentials(cfg.SecretArn,
				config.ARNRegion(cfg.SecretArn), cfg.SecretsManagerEndpoint,
				cfg.SecretUsernameKey, cfg.SecretPasswordKey)
			if err != nil {
				return err
			}
			client := ontap.NewClient(cfg.OntapAdminServer, username, password)

			alerts, err := buildDispatcher(cfg, log)
			if err != nil {
				return err
			}

			return monitor.New(cfg, st, client, alerts, log).Run()
		},
	}
}

// buildDispatcher wires the alert sinks: SNS always, CloudWatch Logs, Slack,
// and the local history database when configured.
func buildDispatcher(cfg *config.Config, log *logrus.Logger) (*alert.Dispatcher, error) {
	alerts := alert.NewDispatcher(log)

	sns, err := alert.NewSNSSink(cfg.SnsTopicArn, config.ARNRegion(cfg.SnsTopicArn), cfg.SnsEndpoint)
	if err != nil {
		return nil, err
	}
	alerts.AddSink(sns)

	if cfg.CloudWatchLogGroupArn != "" {
		cw, err := alert.NewCloudWatchLogsSink(cfg.CloudWatchLogGroupName(),
			config.ARNRegion(cfg.CloudWatchLogGroupArn), cfg.CloudWatchLogsEndpoint)
		if err != nil {
			return nil, err
		}
		alerts.AddSink(cw)
	}
	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		alerts.AddSink(alert.NewSlackSink(cfg.SlackToken, cfg.SlackChannel))
	}
	if cfg.HistoryDBPath != "" {
		db, err := history.Open(cfg.HistoryDBPath)
		if err != nil {
			return nil, err
		}
		alerts.AddSink(history.NewSink(db))
	}
	return alerts, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if cfg.LogLevel != "" {
		parsed, err := logrus.ParseLevel(cfg.LogLevel)
		if err == nil {
			level = parsed
		} else {
			log.Warnf("unknown log level %q, using info", cfg.LogLevel)
		}
	}
	log.SetLevel(level)

	if cfg.SyslogHost != "" {
		hook, err := logrussyslog.NewSyslogHook("udp", cfg.SyslogHost+":514", syslog.LOG_LOCAL0, "ontapmon")
		if err != nil {
			log.Warnf("%v", errors.Wrap(err, "connecting to syslog"))
		} else {
			log.AddHook(hook)
		}
	}
	return log
}
