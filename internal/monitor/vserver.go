package monitor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ontapmon/internal/alert"
)

// checkVservers evaluates SVM availability: the SVM itself plus its NFS and
// CIFS protocol services.
func (m *Monitor) checkVservers(svc Service) error {
	list, err := loadEventList(m.store, m.cfg.VserverEventsFilename)
	if err != nil {
		return errors.Wrapf(err, "retrieving %s", m.cfg.VserverEventsFilename)
	}
	list.age()

	rules := decodeVserverRules(svc, m.log)

	if rules.state != nil && *rules.state {
		svms, err := m.ontap.SVMs()
		if err != nil {
			m.log.Errorf("%v", err)
		} else {
			for _, svm := range svms {
				if strings.ToLower(svm.State) == "running" {
					continue
				}
				index := svm.UUID + "_" + rules.stateKey
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("SVM State Alert: SVM %s on %s is not online.", svm.Name, m.clusterName)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}
		}
	}

	if rules.nfs != nil && *rules.nfs {
		services, err := m.ontap.NFSServices()
		if err != nil {
			m.log.Errorf("%v", err)
		} else {
			for _, service := range services {
				if strings.ToLower(service.State) == "online" {
					continue
				}
				index := service.SVM.UUID + "_" + rules.nfsKey
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("NFS Protocol State Alert: NFS protocol on %s on %s is not online.",
					service.SVM.Name, m.clusterName)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}
		}
	}

	if rules.cifs != nil && *rules.cifs {
		services, err := m.ontap.CIFSServices()
		if err != nil {
			m.log.Errorf("%v", err)
		} else {
			for _, service := range services {
				if service.Enabled {
					continue
				}
				index := service.SVM.UUID + "_" + rules.cifsKey
				if list.exists(index) {
					continue
				}
				message := fmt.Sprintf("CIFS Protocol State Alert: CIFS protocol on %s on %s is not online.",
					service.SVM.Name, m.clusterName)
				m.alerts.Send(message, alert.Warning)
				list.add(Event{Index: index, Message: message})
			}
		}
	}

	list.prune(m.log)
	if err := list.save(m.store); err != nil {
		return errors.Wrapf(err, "saving %s", m.cfg.VserverEventsFilename)
	}
	return nil
}
