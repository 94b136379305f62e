package monitor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ontapmon/internal/alert"
)

// checkSystemHealth evaluates the cluster-level rules: version changes, node
// count changes, and down network interfaces. It shares the system status
// blob with checkSystem, which has already run and created it.
func (m *Monitor) checkSystemHealth(svc Service) error {
	var status SystemStatus
	if _, err := m.store.GetJSON(m.cfg.SystemStatusFilename, &status); err != nil {
		return errors.Wrapf(err, "retrieving %s", m.cfg.SystemStatusFilename)
	}

	changed := false
	for _, rule := range decodeSystemHealthRules(svc, m.log) {
		if !rule.enabled {
			continue
		}
		switch rule.kind {
		case healthVersionChange:
			if m.clusterVersion != status.Version {
				m.alerts.Send(fmt.Sprintf("NOTICE: The ONTAP version changed on cluster %s from %s to %s.",
					m.clusterName, status.Version, m.clusterVersion), alert.Info)
				status.Version = m.clusterVersion
				changed = true
			}
		case healthFailover:
			nodes, err := m.ontap.NodeCount()
			if err != nil {
				m.log.Warnf("%v", err)
				continue
			}
			if nodes != status.NumberNodes {
				m.alerts.Send(fmt.Sprintf("Alert: The number of nodes on cluster %s went from %d to %d.",
					m.clusterName, status.NumberNodes, nodes), alert.Info)
				status.NumberNodes = nodes
				changed = true
			}
		case healthInterfaces:
			interfaces, err := m.ontap.IPInterfaces()
			if err != nil {
				m.log.Warnf("%v", err)
				continue
			}
			ageEvents(status.DownInterfaces)
			for _, iface := range interfaces {
				if iface.State == nil || *iface.State == "up" {
					continue
				}
				if eventExists(status.DownInterfaces, iface.Name) {
					continue
				}
				m.alerts.Send(fmt.Sprintf("Alert: Network interface %s on cluster %s is down.",
					iface.Name, m.clusterName), alert.Warning)
				status.DownInterfaces = append(status.DownInterfaces, Event{
					Index:   iface.Name,
					Refresh: eventResilience,
				})
				changed = true
			}
			pruned, pruneChanged := pruneEvents(status.DownInterfaces, m.log)
			status.DownInterfaces = pruned
			if pruneChanged {
				changed = true
			}
		}
	}

	if changed {
		if err := m.store.PutJSON(m.cfg.SystemStatusFilename, status); err != nil {
			return errors.Wrapf(err, "saving %s", m.cfg.SystemStatusFilename)
		}
	}
	return nil
}
