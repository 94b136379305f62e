package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ontapmon/internal/alert"
)

// checkEmsEvents matches EMS records against the configured name/severity/
// message patterns. The alert severity is derived from the record's own
// severity, not from the rule.
func (m *Monitor) checkEmsEvents(svc Service) error {
	list, err := loadEventList(m.store, m.cfg.EmsEventsFilename)
	if err != nil {
		return errors.Wrapf(err, "retrieving %s", m.cfg.EmsEventsFilename)
	}
	list.age()

	records, err := m.ontap.EmsEvents()
	if err != nil {
		m.log.Warnf("%v", err)
		return nil
	}
	m.log.Debugf("Received %d EMS records.", len(records))

	rules := decodeEmsRules(svc, m.log)
	for _, record := range records {
		for _, rule := range rules {
			if rule.filter != nil && rule.filter.MatchString(record.LogMessage) {
				continue
			}
			if !rule.name.MatchString(record.Message.Name) ||
				!rule.severity.MatchString(record.Message.Severity) ||
				!rule.message.MatchString(record.LogMessage) {
				continue
			}
			index := strconv.FormatInt(record.Index, 10)
			if list.exists(index) {
				continue
			}
			message := fmt.Sprintf("%s : %s %s(%s) - %s",
				record.Time, m.clusterName, record.Message.Name, record.Message.Severity, record.LogMessage)
			switch strings.ToUpper(record.Message.Severity) {
			case "EMERGENCY":
				m.alerts.Send(message, alert.Critical)
			case "ALERT":
				m.alerts.Send(message, alert.Error)
			case "ERROR":
				m.alerts.Send(message, alert.Warning)
			case "NOTICE", "INFORMATIONAL":
				m.alerts.Send(message, alert.Info)
			case "DEBUG":
				m.alerts.Send(message, alert.Debug)
			default:
				m.alerts.Send(fmt.Sprintf("Received unknown severity from ONTAP %q. The message received is next.",
					record.Message.Severity), alert.Info)
				m.alerts.Send(message, alert.Info)
			}
			list.add(Event{
				Index:       index,
				Time:        record.Time,
				MessageName: record.Message.Name,
				Message:     record.LogMessage,
			})
		}
	}

	list.prune(m.log)
	if err := list.save(m.store); err != nil {
		return errors.Wrapf(err, "saving %s", m.cfg.EmsEventsFilename)
	}
	return nil
}
