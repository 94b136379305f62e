package alert

import (
	"github.com/pkg/errors"
	"github.com/slack-go/slack"
)

// SlackSink posts alerts to a channel, color-coded by severity.
type SlackSink struct {
	client  *slack.Client
	channel string
}

func NewSlackSink(token, channel string) *SlackSink {
	return &SlackSink{client: slack.New(token), channel: channel}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(m Message) error {
	attachment := slack.Attachment{
		Color: severityColor(m.Severity),
		Title: m.Severity.String() + ": " + m.Cluster,
		Text:  m.Text,
	}
	_, _, err := s.client.PostMessage(s.channel, slack.MsgOptionAttachments(attachment))
	return errors.Wrap(err, "posting slack message")
}

func severityColor(severity Severity) string {
	switch severity {
	case Critical, Error:
		return "#ff0000"
	case Warning:
		return "#ffcc00"
	default:
		return "#36a64f"
	}
}
