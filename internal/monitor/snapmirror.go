package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron"

	"github.com/ontapmon/internal/alert"
	"github.com/ontapmon/internal/ontap"
)

// transferRecord tracks the progress of one in-flight SnapMirror transfer so
// a stall can be detected across polls. Unlike Event aging, Refresh here is a
// plain re-presence flag: a record missing from a single poll is pruned.
type transferRecord struct {
	UUID             string `json:"uuid"`
	Time             int64  `json:"time"`
	BytesTransferred int64  `json:"bytesTransferred"`
	Refresh          bool   `json:"refresh"`
}

// findTransfer returns the index of the record for uuid, marking it as still
// present, or -1.
func findTransfer(records []transferRecord, uuid string) int {
	for i := range records {
		if records[i].UUID == uuid {
			records[i].Refresh = true
			return i
		}
	}
	return -1
}

// transferInProgress are the transfer states that explain an elevated lag
// time, muting the percent-based lag alert when stall detection is armed.
var transferInProgress = map[string]bool{
	"transferring":     true,
	"finalizing":       true,
	"preparing":        true,
	"fasttransferring": true,
}

// checkSnapMirror evaluates lag, health, and stalled-transfer rules against
// every SnapMirror relationship.
func (m *Monitor) checkSnapMirror(svc Service) error {
	list, err := loadEventList(m.store, m.cfg.SmEventsFilename)
	if err != nil {
		return errors.Wrapf(err, "retrieving %s", m.cfg.SmEventsFilename)
	}
	list.age()

	var transfers []transferRecord
	if _, err := m.store.GetJSON(m.cfg.SmRelationshipsFilename, &transfers); err != nil {
		return errors.Wrapf(err, "retrieving %s", m.cfg.SmRelationshipsFilename)
	}
	for i := range transfers {
		transfers[i].Refresh = false
	}
	updateTransfers := false

	loc := clusterLocation(m.clusterTimezone)
	curTime := m.now().In(loc)
	curTimeSeconds := curTime.Unix()

	rules := decodeSnapMirrorRules(svc, m.log)

	relationships, err := m.ontap.SnapMirrorRelationships()
	if err != nil {
		m.log.Warnf("%v", err)
		return nil
	}

	for _, rel := range relationships {
		// Local relationships carry no source cluster object.
		sourceCluster := m.clusterName
		if rel.Source.Cluster != nil {
			sourceCluster = rel.Source.Cluster.Name
		}

		// A lag time on an uninitialized relationship reflects the
		// source's oldest snapshot, not replication lag, so it is
		// skipped to avoid false positives on new relationships.
		processedLagTime := false
		if rel.LagTime != "" && strings.ToLower(rel.State) != "uninitialized" {
			lagSeconds := parseLagTime(rel.LagTime, m.log)

			if rules.maxLagTimePercent != nil {
				if lastUpdate, ok := m.lastScheduledUpdate(rel, curTime); ok {
					processedLagTime = true
					allowed := float64(curTimeSeconds-lastUpdate) * *rules.maxLagTimePercent / 100
					stallArmed := rules.stalledSeconds != nil &&
						rel.Transfer != nil && transferInProgress[strings.ToLower(rel.Transfer.State)]
					if float64(lagSeconds) > allowed && !stallArmed {
						index := rel.UUID + "_" + rules.maxLagTimePercentKey
						if !list.exists(index) {
							message := fmt.Sprintf("SnapMirror Lag Alert: %s::%s -> %s::%s has a lag time of %d seconds (%s) which is more than %v%% of its last scheduled update at %s.",
								sourceCluster, rel.Source.Path, m.clusterName, rel.Destination.Path,
								lagSeconds, formatLagTime(lagSeconds), *rules.maxLagTimePercent,
								time.Unix(lastUpdate, 0).In(loc).Format("2006-01-02 15:04:05"))
							m.alerts.Send(message, alert.Warning)
							list.add(Event{Index: index, Message: message})
						}
					}
				}
			}

			if rules.maxLagTime != nil && !processedLagTime && float64(lagSeconds) > *rules.maxLagTime {
				index := rel.UUID + "_" + rules.maxLagTimeKey
				if !list.exists(index) {
					message := fmt.Sprintf("SnapMirror Lag Alert: %s::%s -> %s::%s has a lag time of %d seconds, or %s which is more than %v.",
						sourceCluster, rel.Source.Path, m.clusterName, rel.Destination.Path,
						lagSeconds, formatLagTime(lagSeconds), *rules.maxLagTime)
					m.alerts.Send(message, alert.Warning)
					list.add(Event{Index: index, Message: message})
				}
			}
		}

		if rules.healthy != nil && !*rules.healthy && !rel.Healthy {
			index := rel.UUID + "_" + rules.healthyKey
			if !list.exists(index) {
				message := fmt.Sprintf("SnapMirror Health Alert: %s::%s %s::%s has a status of %t.",
					sourceCluster, rel.Source.Path, m.clusterName, rel.Destination.Path, rel.Healthy)
				for _, reason := range rel.UnhealthyReason {
					message += "\n" + reason.Message
				}
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}
		}

		if rules.stalledSeconds != nil && rel.Transfer != nil &&
			strings.ToLower(rel.Transfer.State) == "transferring" {
			if i := findTransfer(transfers, rel.Transfer.UUID); i >= 0 {
				if transfers[i].BytesTransferred == rel.Transfer.BytesTransferred {
					if float64(curTimeSeconds-transfers[i].Time) > *rules.stalledSeconds {
						index := rel.UUID + "_transfer"
						if !list.exists(index) {
							message := fmt.Sprintf("SnapMirror transfer has stalled: %s::%s -> %s::%s.",
								sourceCluster, rel.Source.Path, m.clusterName, rel.Destination.Path)
							m.alerts.Send(message, alert.Warning)
							list.add(Event{Index: index, Message: message})
						}
					}
				} else {
					transfers[i].Time = curTimeSeconds
					transfers[i].BytesTransferred = rel.Transfer.BytesTransferred
					updateTransfers = true
				}
			} else {
				transfers = append(transfers, transferRecord{
					UUID:             rel.Transfer.UUID,
					Time:             curTimeSeconds,
					BytesTransferred: rel.Transfer.BytesTransferred,
					Refresh:          true,
				})
				updateTransfers = true
			}
		}
	}

	kept := transfers[:0]
	for _, rec := range transfers {
		if !rec.Refresh {
			m.log.Debugf("deleting transfer record %s", rec.UUID)
			updateTransfers = true
			continue
		}
		kept = append(kept, rec)
	}
	transfers = kept

	if updateTransfers {
		if err := m.store.PutJSON(m.cfg.SmRelationshipsFilename, transfers); err != nil {
			return errors.Wrapf(err, "saving %s", m.cfg.SmRelationshipsFilename)
		}
	}

	list.prune(m.log)
	if err := list.save(m.store); err != nil {
		return errors.Wrapf(err, "saving %s", m.cfg.SmEventsFilename)
	}
	return nil
}

// lastScheduledUpdate resolves the schedule attached to a relationship, or
// failing that to its policy, and returns the epoch seconds of the most
// recent time it should have fired.
func (m *Monitor) lastScheduledUpdate(rel ontap.SnapMirrorRelationship, now time.Time) (int64, bool) {
	scheduleUUID := ""
	if rel.TransferSchedule != nil {
		scheduleUUID = rel.TransferSchedule.UUID
	} else {
		policy, err := m.ontap.SnapMirrorPolicy(rel.Policy.UUID)
		if err != nil {
			m.log.Errorf("%v", err)
			return 0, false
		}
		if policy.TransferSchedule == nil {
			return 0, false
		}
		scheduleUUID = policy.TransferSchedule.UUID
	}

	schedule, err := m.ontap.Schedule(scheduleUUID)
	if err != nil {
		m.log.Errorf("%v", err)
		return 0, false
	}
	expr := cronExpression(schedule.Cron)
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		m.log.Errorf("invalid schedule %q for %s: %v", expr, scheduleUUID, err)
		return 0, false
	}
	last, ok := lastScheduledRun(sched, now)
	if !ok {
		return 0, false
	}
	return last.Unix(), true
}
