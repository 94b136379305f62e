package monitor

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Conditions is the rule configuration tree. On the wire every rule is a
// small JSON object keyed by a condition name; keys are matched
// case-insensitively and unknown keys warn rather than fail, so old
// configurations keep working when new condition types appear.
type Conditions struct {
	Services []Service `json:"services"`
}

type Service struct {
	Name  string                   `json:"name"`
	Rules []map[string]interface{} `json:"rules"`
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// systemHealthRule kinds.
const (
	healthVersionChange = "versionchange"
	healthFailover      = "failover"
	healthInterfaces    = "networkinterfaces"
)

type systemHealthRule struct {
	kind    string
	enabled bool
}

func decodeSystemHealthRules(svc Service, log *logrus.Logger) []systemHealthRule {
	var rules []systemHealthRule
	for _, rule := range svc.Rules {
		for key, value := range rule {
			kind := strings.ToLower(key)
			switch kind {
			case healthVersionChange, healthFailover, healthInterfaces:
				enabled, ok := asBool(value)
				if !ok {
					log.Warnf("system health rule %q is not a boolean", key)
					continue
				}
				rules = append(rules, systemHealthRule{kind: kind, enabled: enabled})
			default:
				log.Warnf("unknown system health alert type %q", key)
			}
		}
	}
	return rules
}

// emsRule is a compiled EMS matching rule. The exclusion filter is applied
// before the name/severity/message conjunction.
type emsRule struct {
	name     *regexp.Regexp
	severity *regexp.Regexp
	message  *regexp.Regexp
	filter   *regexp.Regexp // nil when no exclusion configured
}

func decodeEmsRules(svc Service, log *logrus.Logger) []emsRule {
	compile := func(key, expr string) *regexp.Regexp {
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Warnf("invalid EMS %s pattern %q: %v", key, expr, err)
			return nil
		}
		return re
	}

	var rules []emsRule
	for _, rule := range svc.Rules {
		var r emsRule
		valid := true
		for key, value := range rule {
			expr, ok := asString(value)
			if !ok {
				log.Warnf("EMS rule key %q is not a string", key)
				valid = false
				continue
			}
			switch strings.ToLower(key) {
			case "name":
				r.name = compile(key, expr)
				valid = valid && r.name != nil
			case "severity":
				r.severity = compile(key, expr)
				valid = valid && r.severity != nil
			case "message":
				r.message = compile(key, expr)
				valid = valid && r.message != nil
			case "filter":
				if expr != "" {
					r.filter = compile(key, expr)
					valid = valid && r.filter != nil
				}
			default:
				log.Warnf("unknown EMS rule key %q", key)
			}
		}
		if !valid || r.name == nil || r.severity == nil || r.message == nil {
			if valid {
				log.Warnf("EMS rule missing name, severity, or message pattern, ignored")
			}
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

// snapMirrorRules is the consolidated rule set for the snapmirror category.
// The original key spelling rides along because it is embedded in the event
// indexes the dedup state is keyed by.
type snapMirrorRules struct {
	maxLagTime           *float64
	maxLagTimeKey        string
	maxLagTimePercent    *float64
	maxLagTimePercentKey string
	healthy              *bool
	healthyKey           string
	stalledSeconds       *float64
	stalledSecondsKey    string
}

func decodeSnapMirrorRules(svc Service, log *logrus.Logger) snapMirrorRules {
	var rules snapMirrorRules
	for _, rule := range svc.Rules {
		for key, value := range rule {
			switch strings.ToLower(key) {
			case "maxlagtime":
				if n, ok := asFloat(value); ok {
					rules.maxLagTime = &n
					rules.maxLagTimeKey = key
				}
			case "maxlagtimepercent":
				if n, ok := asFloat(value); ok {
					rules.maxLagTimePercent = &n
					rules.maxLagTimePercentKey = key
				}
			case "healthy":
				if b, ok := asBool(value); ok {
					rules.healthy = &b
					rules.healthyKey = key
				}
			case "stalledtransferseconds":
				if n, ok := asFloat(value); ok {
					rules.stalledSeconds = &n
					rules.stalledSecondsKey = key
				}
			default:
				log.Warnf("unknown snapmirror alert type %q", key)
			}
		}
	}
	return rules
}

// storageRule kinds.
const (
	storageAggrWarn       = "aggrwarnpercentused"
	storageAggrCritical   = "aggrcriticalpercentused"
	storageVolumeWarn     = "volumewarnpercentused"
	storageVolumeCritical = "volumecriticalpercentused"
	storageFilesWarn      = "volumewarnfilespercentused"
	storageFilesCritical  = "volumecriticalfilespercentused"
	storageVolumeOffline  = "offline"
)

type storageRule struct {
	kind      string
	key       string // as configured, for index synthesis
	threshold float64
	offline   bool
}

func decodeStorageRules(svc Service, log *logrus.Logger) []storageRule {
	var rules []storageRule
	for _, rule := range svc.Rules {
		for key, value := range rule {
			kind := strings.ToLower(key)
			switch kind {
			case storageAggrWarn, storageAggrCritical,
				storageVolumeWarn, storageVolumeCritical,
				storageFilesWarn, storageFilesCritical:
				n, ok := asFloat(value)
				if !ok {
					log.Warnf("storage rule %q is not a number", key)
					continue
				}
				rules = append(rules, storageRule{kind: kind, key: key, threshold: n})
			case storageVolumeOffline:
				b, ok := asBool(value)
				if !ok {
					log.Warnf("storage rule %q is not a boolean", key)
					continue
				}
				rules = append(rules, storageRule{kind: kind, key: key, offline: b})
			default:
				log.Warnf("unknown storage alert type %q", key)
			}
		}
	}
	return rules
}

// quotaRule kinds.
const (
	quotaInodes    = "maxquotainodespercentused"
	quotaHardSpace = "maxhardquotaspacepercentused"
	quotaSoftSpace = "maxsoftquotaspacepercentused"
)

type quotaRule struct {
	kind      string
	key       string
	threshold float64
}

func decodeQuotaRules(svc Service, log *logrus.Logger) []quotaRule {
	var rules []quotaRule
	for _, rule := range svc.Rules {
		for key, value := range rule {
			kind := strings.ToLower(key)
			switch kind {
			case quotaInodes, quotaHardSpace, quotaSoftSpace:
				n, ok := asFloat(value)
				if !ok {
					log.Warnf("quota rule %q is not a number", key)
					continue
				}
				rules = append(rules, quotaRule{kind: kind, key: key, threshold: n})
			default:
				log.Warnf("unknown quota matching condition type %q", key)
			}
		}
	}
	return rules
}

type vserverRules struct {
	state    *bool
	stateKey string
	nfs      *bool
	nfsKey   string
	cifs     *bool
	cifsKey  string
}

func decodeVserverRules(svc Service, log *logrus.Logger) vserverRules {
	var rules vserverRules
	for _, rule := range svc.Rules {
		for key, value := range rule {
			b, ok := asBool(value)
			switch strings.ToLower(key) {
			case "vserverstate":
				if ok {
					rules.state = &b
					rules.stateKey = key
				}
			case "nfsprotocolstate":
				if ok {
					rules.nfs = &b
					rules.nfsKey = key
				}
			case "cifsprotocolstate":
				if ok {
					rules.cifs = &b
					rules.cifsKey = key
				}
			default:
				log.Warnf("unknown vserver alert type %q", key)
			}
		}
	}
	return rules
}

// buildDefaultConditions synthesizes the conditions tree from the initial*
// environment variables. It runs once, on the first poll against a cluster;
// the persisted result is the editable configuration from then on.
func buildDefaultConditions() Conditions {
	conds := Conditions{Services: []Service{
		{Name: "systemHealth", Rules: []map[string]interface{}{}},
		{Name: "ems", Rules: []map[string]interface{}{}},
		{Name: "snapmirror", Rules: []map[string]interface{}{}},
		{Name: "storage", Rules: []map[string]interface{}{}},
		{Name: "quota", Rules: []map[string]interface{}{}},
		{Name: "vserver", Rules: []map[string]interface{}{}},
	}}

	addRule := func(service string, rule map[string]interface{}) {
		for i := range conds.Services {
			if conds.Services[i].Name == service {
				conds.Services[i].Rules = append(conds.Services[i].Rules, rule)
				return
			}
		}
	}
	boolRule := func(env, service, key string) {
		if value, ok := os.LookupEnv(env); ok {
			addRule(service, map[string]interface{}{key: value == "true"})
		}
	}
	thresholdRule := func(env, service, key string) {
		value, ok := os.LookupEnv(env)
		if !ok {
			return
		}
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			addRule(service, map[string]interface{}{key: n})
		}
	}

	boolRule("initialVersionChangeAlert", "systemHealth", "versionChange")
	boolRule("initialFailoverAlert", "systemHealth", "failover")
	boolRule("initialNetworkInterfacesAlert", "systemHealth", "networkInterfaces")
	if os.Getenv("initialEmsEventsAlert") == "true" {
		addRule("ems", map[string]interface{}{
			"name": "", "severity": "error|alert|emergency", "message": "", "filter": "",
		})
	}
	// The health rule stores the value the evaluator matches on, so
	// enabling the alert means matching Healthy == false.
	if value, ok := os.LookupEnv("initialSnapMirrorHealthAlert"); ok {
		addRule("snapmirror", map[string]interface{}{"Healthy": value != "true"})
	}
	thresholdRule("initialSnapMirrorLagTimeAlert", "snapmirror", "maxLagTime")
	thresholdRule("initialSnapMirrorLagTimePercentAlert", "snapmirror", "maxLagTimePercent")
	thresholdRule("initialSnapMirrorStalledAlert", "snapmirror", "stalledTransferSeconds")
	thresholdRule("initialFileSystemUtilizationWarnAlert", "storage", "aggrWarnPercentUsed")
	thresholdRule("initialFileSystemUtilizationCriticalAlert", "storage", "aggrCriticalPercentUsed")
	thresholdRule("initialVolumeUtilizationWarnAlert", "storage", "volumeWarnPercentUsed")
	thresholdRule("initialVolumeUtilizationCriticalAlert", "storage", "volumeCriticalPercentUsed")
	thresholdRule("initialVolumeFileUtilizationWarnAlert", "storage", "volumeWarnFilesPercentUsed")
	thresholdRule("initialVolumeFileUtilizationCriticalAlert", "storage", "volumeCriticalFilesPercentUsed")
	boolRule("initialVolumeOfflineAlert", "storage", "offline")
	thresholdRule("initialSoftQuotaUtilizationAlert", "quota", "maxSoftQuotaSpacePercentUsed")
	thresholdRule("initialHardQuotaUtilizationAlert", "quota", "maxHardQuotaSpacePercentUsed")
	thresholdRule("initialInodesQuotaUtilizationAlert", "quota", "maxQuotaInodesPercentUsed")
	boolRule("initialVserverStateAlert", "vserver", "vserverState")
	boolRule("initialVserverNFSProtocolStateAlert", "vserver", "nfsProtocolState")
	boolRule("initialVserverCIFSProtocolStateAlert", "vserver", "cifsProtocolState")

	return conds
}
