// Package alert fans alert messages out to the configured notification
// sinks: the local log, an SNS topic, and optionally CloudWatch Logs, Slack,
// and a local history database.
package alert

import (
	"github.com/sirupsen/logrus"
)

// Message is one alert on its way to the sinks. Cluster is the display
// name of the cluster the alert is about.
type Message struct {
	Cluster  string
	Severity Severity
	Text     string
}

// Sink delivers one alert message to one destination.
type Sink interface {
	Name() string
	Send(m Message) error
}

// Dispatcher sends every alert to the local log and all sinks. A failing
// sink is logged and skipped; it never blocks delivery to the others.
type Dispatcher struct {
	log     *logrus.Logger
	cluster string
	sinks   []Sink
}

func NewDispatcher(log *logrus.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{log: log, sinks: sinks}
}

// AddSink registers an additional sink.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// SetCluster sets the cluster display name stamped on subsequent alerts.
// The name is only known once the cluster has been probed, so the monitor
// calls this before evaluating any rules.
func (d *Dispatcher) SetCluster(name string) {
	d.cluster = name
}

// Send logs the message at a level matching severity and forwards it to
// every sink.
func (d *Dispatcher) Send(text string, severity Severity) {
	switch severity {
	case Critical, Error:
		d.log.Error(text)
	case Warning:
		d.log.Warn(text)
	case Debug:
		d.log.Debug(text)
	default:
		d.log.Info(text)
	}

	m := Message{Cluster: d.cluster, Severity: severity, Text: text}
	for _, sink := range d.sinks {
		if err := sink.Send(m); err != nil {
			d.log.Errorf("%s sink failed: %v", sink.Name(), err)
		}
	}
}
