package alert

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/pkg/errors"
)

// SNSSink publishes alerts to a notification topic. This is the primary
// delivery channel; subscribers decide what email/SMS/endpoint fan-out to do.
type SNSSink struct {
	client   *sns.SNS
	topicArn string
}

func NewSNSSink(topicArn, region, endpoint string) (*SNSSink, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String("https://" + endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating sns session")
	}
	return &SNSSink{client: sns.New(sess), topicArn: topicArn}, nil
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Send(m Message) error {
	_, err := s.client.Publish(&sns.PublishInput{
		TopicArn: aws.String(s.topicArn),
		Message:  aws.String(m.Text),
		Subject:  aws.String(fmt.Sprintf("%s: Monitor ONTAP Services Alert for cluster %s", m.Severity, m.Cluster)),
	})
	return errors.Wrapf(err, "publishing to %s", s.topicArn)
}
