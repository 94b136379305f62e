package monitor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ontapmon/internal/alert"
)

// checkStorage evaluates aggregate and volume utilization rules. The
// aggregate and volume listings fail independently; a rule whose data source
// is unavailable is skipped for the poll.
func (m *Monitor) checkStorage(svc Service) error {
	list, err := loadEventList(m.store, m.cfg.StorageEventsFilename)
	if err != nil {
		return errors.Wrapf(err, "retrieving %s", m.cfg.StorageEventsFilename)
	}
	list.age()

	aggregates, aggrErr := m.ontap.Aggregates()
	if aggrErr != nil {
		m.log.Errorf("%v", aggrErr)
	}

	volumes, volErr := m.ontap.Volumes(false)
	if volErr != nil {
		m.log.Errorf("%v", volErr)
	} else {
		// FlexGroup constituents are only reported when asked for.
		constituents, err := m.ontap.Volumes(true)
		if err != nil {
			m.log.Errorf("%v", err)
		} else {
			volumes = append(volumes, constituents...)
		}
	}

	if aggrErr != nil && volErr != nil {
		return nil
	}

	for _, rule := range decodeStorageRules(svc, m.log) {
		switch rule.kind {
		case storageAggrWarn, storageAggrCritical:
			if aggrErr != nil {
				continue
			}
			alertType := "Warning"
			if rule.kind == storageAggrCritical {
				alertType = "Critical"
			}
			for _, aggr := range aggregates {
				usedPercent := aggr.Space.BlockStorage.UsedPercent
				if usedPercent < rule.threshold {
					continue
				}
				index := aggr.UUID + "_" + rule.key
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("Aggregate %s Alert: Aggregate %s on %s is %v%% full, which is more or equal to %v%% full.",
					alertType, aggr.Name, m.clusterName, usedPercent, rule.threshold)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}

		case storageVolumeWarn, storageVolumeCritical:
			if volErr != nil {
				continue
			}
			alertType := "Warning"
			if rule.kind == storageVolumeCritical {
				alertType = "Critical"
			}
			for _, vol := range volumes {
				if vol.Space.PercentUsed == nil || *vol.Space.PercentUsed < rule.threshold {
					continue
				}
				index := vol.UUID + "_" + rule.key
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("Volume Usage %s Alert: volume %s:%s on %s is %v%% full, which is more or equal to %v%% full.",
					alertType, vol.SVM.Name, vol.Name, m.clusterName, *vol.Space.PercentUsed, rule.threshold)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}

		case storageFilesWarn, storageFilesCritical:
			if volErr != nil {
				continue
			}
			alertType := "Warning"
			if rule.kind == storageFilesCritical {
				alertType = "Critical"
			}
			for _, vol := range volumes {
				// Offline volumes report no files section.
				if vol.Files == nil || vol.Files.Maximum == nil || vol.Files.Used == nil {
					continue
				}
				percentUsed := float64(*vol.Files.Used) / float64(*vol.Files.Maximum) * 100
				if percentUsed < rule.threshold {
					continue
				}
				index := vol.UUID + "_" + rule.key
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("Volume File (inode) Usage %s Alert: volume %s:%s on %s is using %.0f%% of its inodes, which is more or equal to %v%% utilization.",
					alertType, vol.SVM.Name, vol.Name, m.clusterName, percentUsed, rule.threshold)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}

		case storageVolumeOffline:
			if volErr != nil || !rule.offline {
				continue
			}
			for _, vol := range volumes {
				if strings.ToLower(vol.State) != "offline" {
					continue
				}
				index := fmt.Sprintf("%s_%s_%t", vol.UUID, rule.key, rule.offline)
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("Volume Offline Alert: volume %s:%s on %s is offline.",
					vol.SVM.Name, vol.Name, m.clusterName)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}
		}
	}

	list.prune(m.log)
	if err := list.save(m.store); err != nil {
		return errors.Wrapf(err, "saving %s", m.cfg.StorageEventsFilename)
	}
	return nil
}
