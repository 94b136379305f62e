package alert

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/pkg/errors"
)

// CloudWatchLogsSink appends alerts to a per-cluster-per-day log stream,
// creating the stream on first use each day.
type CloudWatchLogsSink struct {
	client *cloudwatchlogs.CloudWatchLogs
	group  string
	now    func() time.Time
}

func NewCloudWatchLogsSink(group, region, endpoint string) (*CloudWatchLogsSink, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String("https://" + endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating cloudwatch logs session")
	}
	return &CloudWatchLogsSink{
		client: cloudwatchlogs.New(sess),
		group:  group,
		now:    time.Now,
	}, nil
}

func (s *CloudWatchLogsSink) Name() string { return "cloudwatch-logs" }

func (s *CloudWatchLogsSink) Send(m Message) error {
	stream := fmt.Sprintf("%s-monitor-ontap-services-%s", m.Cluster, s.now().Format("2006-01-02"))

	existing, err := s.client.DescribeLogStreams(&cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(s.group),
		LogStreamNamePrefix: aws.String(stream),
	})
	if err != nil {
		return errors.Wrapf(err, "describing log streams in %s", s.group)
	}
	if len(existing.LogStreams) == 0 {
		_, err := s.client.CreateLogStream(&cloudwatchlogs.CreateLogStreamInput{
			LogGroupName:  aws.String(s.group),
			LogStreamName: aws.String(stream),
		})
		if err != nil {
			return errors.Wrapf(err, "creating log stream %s", stream)
		}
	}

	_, err = s.client.PutLogEvents(&cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(stream),
		LogEvents: []*cloudwatchlogs.InputLogEvent{{
			Timestamp: aws.Int64(s.now().UnixMilli()),
			Message:   aws.String(m.Text),
		}},
	})
	return errors.Wrapf(err, "putting log events to %s", stream)
}
