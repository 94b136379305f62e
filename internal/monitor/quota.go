package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ontapmon/internal/alert"
	"github.com/ontapmon/internal/ontap"
)

// checkQuotas evaluates inode and space utilization rules against the quota
// report. Quota records frequently omit the limit-percent fields (no limit
// configured), so every comparison is guarded.
func (m *Monitor) checkQuotas(svc Service) error {
	list, err := loadEventList(m.store, m.cfg.QuotaEventsFilename)
	if err != nil {
		return errors.Wrapf(err, "retrieving %s", m.cfg.QuotaEventsFilename)
	}
	list.age()

	reports, err := m.ontap.QuotaReports()
	if err != nil {
		m.log.Errorf("%v", err)
		return nil
	}

	rules := decodeQuotaRules(svc, m.log)
	for _, record := range reports {
		for _, rule := range rules {
			switch rule.kind {
			case quotaInodes:
				if record.Files == nil || record.Files.Used.HardLimitPercent == nil ||
					*record.Files.Used.HardLimitPercent <= rule.threshold {
					continue
				}
				index := strconv.FormatInt(record.Index, 10) + "_" + rule.key
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("Quota Inode Usage Alert: Quota of type %q on %s:/%s%s%son %s is using %v%% which is more than %v%% of its inodes.",
					record.Type, record.SVM.Name, record.Volume.Name, qtreePart(record), usersPart(record),
					m.clusterName, *record.Files.Used.HardLimitPercent, rule.threshold)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})

			case quotaHardSpace:
				if record.Space == nil || record.Space.Used.HardLimitPercent == nil ||
					*record.Space.Used.HardLimitPercent < rule.threshold {
					continue
				}
				index := strconv.FormatInt(record.Index, 10) + "_" + rule.key
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("Quota Space Usage Alert: Hard quota of type %q on %s:/%s%s%son %s is using %v%% which is more than %v%% of its allocated space.",
					record.Type, record.SVM.Name, record.Volume.Name, qtreePart(record), usersPart(record),
					m.clusterName, *record.Space.Used.HardLimitPercent, rule.threshold)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})

			case quotaSoftSpace:
				if record.Space == nil || record.Space.Used.SoftLimitPercent == nil ||
					*record.Space.Used.SoftLimitPercent < rule.threshold {
					continue
				}
				index := strconv.FormatInt(record.Index, 10) + "_" + rule.key
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("Quota Space Usage Alert: Soft quota of type %q on %s:/%s%s%son %s is using %v%% which is more than %v%% of its allocated space.",
					record.Type, record.SVM.Name, record.Volume.Name, qtreePart(record), usersPart(record),
					m.clusterName, *record.Space.Used.SoftLimitPercent, rule.threshold)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}
		}
	}

	list.prune(m.log)
	if err := list.save(m.store); err != nil {
		return errors.Wrapf(err, "saving %s", m.cfg.QuotaEventsFilename)
	}
	return nil
}

func qtreePart(record ontap.QuotaReport) string {
	if record.Qtree != nil {
		return fmt.Sprintf(" under qtree: %s ", record.Qtree.Name)
	}
	return " "
}

func usersPart(record ontap.QuotaReport) string {
	if len(record.Users) == 0 {
		return ""
	}
	names := make([]string, len(record.Users))
	for i, user := range record.Users {
		names[i] = user.Name
	}
	return fmt.Sprintf("associated with user(s) %q ", strings.Join(names, ","))
}
