package alert

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name     string
	err      error
	messages []Message
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(m Message) error {
	r.messages = append(r.messages, m)
	return r.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSendStampsCluster(t *testing.T) {
	sink := &recordingSink{name: "first"}
	d := NewDispatcher(testLogger(), sink)
	d.SetCluster("fsxn1(123456789012)")

	d.Send("volume is full", Warning)
	require.Len(t, sink.messages, 1)
	assert.Equal(t, Message{
		Cluster:  "fsxn1(123456789012)",
		Severity: Warning,
		Text:     "volume is full",
	}, sink.messages[0])
}

func TestSendIsolatesFailingSink(t *testing.T) {
	broken := &recordingSink{name: "broken", err: errors.New("topic gone")}
	working := &recordingSink{name: "working"}
	d := NewDispatcher(testLogger(), broken, working)
	d.SetCluster("fsxn1")

	d.Send("cluster could be down", Critical)
	assert.Len(t, broken.messages, 1)
	require.Len(t, working.messages, 1)
	assert.Equal(t, Critical, working.messages[0].Severity)
}

func TestAddSink(t *testing.T) {
	d := NewDispatcher(testLogger())
	sink := &recordingSink{name: "late"}
	d.AddSink(sink)

	d.Send("hello", Info)
	assert.Len(t, sink.messages, 1)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "CRITICAL", Critical.String())
	assert.Equal(t, "WARNING", Warning.String())
	assert.Equal(t, "DEBUG", Debug.String())
}
