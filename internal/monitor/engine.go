// Package monitor evaluates alerting rules against the polled state of one
// ONTAP cluster. Each invocation is a complete poll cycle: load the rule
// configuration and the per-category deduplication state, query the cluster,
// dispatch alerts for new conditions, and persist whatever state changed.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ontapmon/internal/alert"
	"github.com/ontapmon/internal/config"
	"github.com/ontapmon/internal/ontap"
	"github.com/ontapmon/internal/store"
)

// Monitor runs one poll cycle at a time. It is not safe for concurrent use;
// overlapping invocations against the same persisted state would race on the
// category blobs, so scheduling must be single-flight.
type Monitor struct {
	cfg    *config.Config
	store  store.Store
	ontap  *ontap.Client
	alerts *alert.Dispatcher
	log    *logrus.Logger
	now    func() time.Time

	clusterName     string
	clusterVersion  string
	clusterTimezone string
}

func New(cfg *config.Config, st store.Store, client *ontap.Client, alerts *alert.Dispatcher, log *logrus.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		store:  st,
		ontap:  client,
		alerts: alerts,
		log:    log,
		now:    time.Now,
	}
}

// Run executes one poll cycle. A cluster judged down short-circuits every
// category check; the reachability probe alone decides that and fires the
// single down-transition alert. Store errors are fatal, REST errors degrade
// to skipped categories.
func (m *Monitor) Run() error {
	conditions, err := m.loadConditions()
	if err != nil {
		return err
	}

	up, err := m.checkSystem()
	if err != nil {
		return err
	}
	if !up {
		return nil
	}

	for _, svc := range conditions.Services {
		switch strings.ToLower(svc.Name) {
		case "systemhealth":
			err = m.checkSystemHealth(svc)
		case "ems":
			err = m.checkEmsEvents(svc)
		case "snapmirror":
			err = m.checkSnapMirror(svc)
		case "storage":
			err = m.checkStorage(svc)
		case "quota":
			err = m.checkQuotas(svc)
		case "vserver":
			err = m.checkVservers(svc)
		default:
			m.log.Warnf("Unknown service %q.", svc.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// loadConditions reads the rule configuration, synthesizing and persisting
// the default set on the first run against a cluster.
func (m *Monitor) loadConditions() (Conditions, error) {
	var conditions Conditions
	found, err := m.store.GetJSON(m.cfg.ConditionsFilename, &conditions)
	if err != nil {
		return Conditions{}, errors.Wrapf(err, "retrieving configuration %s", m.cfg.ConditionsFilename)
	}
	if !found {
		conditions = buildDefaultConditions()
		if err := m.store.PutJSON(m.cfg.ConditionsFilename, conditions); err != nil {
			return Conditions{}, errors.Wrapf(err, "saving default configuration %s", m.cfg.ConditionsFilename)
		}
	}
	return conditions, nil
}

// SystemStatus is the persisted cluster-level state: reachability, the last
// seen version, the node count, and the down-interface dedup records.
type SystemStatus struct {
	SystemHealth   bool    `json:"systemHealth"`
	Version        string  `json:"version"`
	NumberNodes    int     `json:"numberNodes"`
	DownInterfaces []Event `json:"downInterfaces"`
}

// checkSystem probes the cluster and reports whether it is up. The probe
// also yields the cluster display name, version, and timezone the category
// checks need, so it must run before any of them. Only the down transition
// alerts; recovery is silent.
func (m *Monitor) checkSystem() (bool, error) {
	var status SystemStatus
	found, err := m.store.GetJSON(m.cfg.SystemStatusFilename, &status)
	if err != nil {
		return false, errors.Wrapf(err, "retrieving %s", m.cfg.SystemStatusFilename)
	}
	changed := false
	if !found {
		status = SystemStatus{
			SystemHealth:   true,
			Version:        initialVersion,
			NumberNodes:    2,
			DownInterfaces: []Event{},
		}
		changed = true
	}

	info, err := m.ontap.Cluster()
	if err == nil {
		if !status.SystemHealth {
			status.SystemHealth = true
			changed = true
		}
		m.clusterName = m.displayName(info.Name)
		m.alerts.SetCluster(m.clusterName)
		// The individual version keys don't carry the patch level, so
		// pick it out of the full string, which looks like
		// "NetApp Release 9.13.1P6: Tue Dec 05 16:06:25 UTC 2023".
		if fields := strings.Fields(info.Version.Full); len(fields) >= 3 {
			m.clusterVersion = strings.ReplaceAll(fields[2], ":", "")
		}
		if status.Version == initialVersion {
			status.Version = m.clusterVersion
		}
		m.clusterTimezone = info.Timezone.Name
	} else {
		m.clusterName = m.displayName(m.cfg.OntapAdminServer)
		m.alerts.SetCluster(m.clusterName)
		if status.SystemHealth {
			m.log.Debugf("cluster probe failed: %v", err)
			message := fmt.Sprintf("CRITICAL: Failed to issue API against %s. Cluster could be down.", m.clusterName)
			var statusErr *ontap.StatusError
			if errors.As(err, &statusErr) {
				message = fmt.Sprintf("CRITICAL: Received a non 200 HTTP status code (%d) when trying to access %s.",
					statusErr.Code, m.clusterName)
			}
			m.alerts.Send(message, alert.Critical)
			status.SystemHealth = false
			changed = true
		}
	}

	if changed {
		if err := m.store.PutJSON(m.cfg.SystemStatusFilename, status); err != nil {
			return false, errors.Wrapf(err, "saving %s", m.cfg.SystemStatusFilename)
		}
	}
	return status.SystemHealth, nil
}

// displayName qualifies a cluster name with the AWS account id when one is
// configured, so alerts from identically named clusters in different
// accounts stay distinguishable.
func (m *Monitor) displayName(name string) string {
	if m.cfg.AwsAccountID != "" {
		return fmt.Sprintf("%s(%s)", name, m.cfg.AwsAccountID)
	}
	return name
}
