package ontap

// Response shapes for the ONTAP REST endpoints the monitor polls. Only the
// fields the monitor reads are declared; everything else in the payloads is
// ignored.

// ClusterInfo is the reachability probe payload.
type ClusterInfo struct {
	Name    string `json:"name"`
	Version struct {
		Full string `json:"full"`
	} `json:"version"`
	Timezone struct {
		Name string `json:"name"`
	} `json:"timezone"`
}

// EmsEvent is one record from the event management system log.
type EmsEvent struct {
	Index      int64  `json:"index"`
	Time       string `json:"time"`
	LogMessage string `json:"log_message"`
	Message    struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"message"`
}

type SnapMirrorEndpoint struct {
	Path    string `json:"path"`
	Cluster *struct {
		Name string `json:"name"`
	} `json:"cluster"`
}

type SnapMirrorTransfer struct {
	UUID             string `json:"uuid"`
	State            string `json:"state"`
	BytesTransferred int64  `json:"bytes_transferred"`
}

type SnapMirrorRelationship struct {
	UUID            string             `json:"uuid"`
	State           string             `json:"state"`
	Healthy         bool               `json:"healthy"`
	LagTime         string             `json:"lag_time"`
	Source          SnapMirrorEndpoint `json:"source"`
	Destination     SnapMirrorEndpoint `json:"destination"`
	UnhealthyReason []struct {
		Message string `json:"message"`
	} `json:"unhealthy_reason"`
	Policy struct {
		UUID string `json:"uuid"`
	} `json:"policy"`
	TransferSchedule *struct {
		UUID string `json:"uuid"`
	} `json:"transfer_schedule"`
	Transfer *SnapMirrorTransfer `json:"transfer"`
}

// CronFields is the schedule encoding: each field is nil for "*" or a sorted
// list of integers.
type CronFields struct {
	Minutes  []int `json:"minutes"`
	Hours    []int `json:"hours"`
	Days     []int `json:"days"`
	Months   []int `json:"months"`
	Weekdays []int `json:"weekdays"`
}

type Schedule struct {
	Cron CronFields `json:"cron"`
}

type SnapMirrorPolicy struct {
	TransferSchedule *struct {
		UUID string `json:"uuid"`
	} `json:"transfer_schedule"`
}

type Aggregate struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Space struct {
		BlockStorage struct {
			UsedPercent float64 `json:"used_percent"`
		} `json:"block_storage"`
	} `json:"space"`
}

type Volume struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	State string `json:"state"`
	SVM   struct {
		Name string `json:"name"`
	} `json:"svm"`
	Space struct {
		PercentUsed *float64 `json:"percent_used"`
	} `json:"space"`
	// Offline volumes report no files section.
	Files *struct {
		Maximum *int64 `json:"maximum"`
		Used    *int64 `json:"used"`
	} `json:"files"`
}

type QuotaReport struct {
	Index int64  `json:"index"`
	Type  string `json:"type"`
	SVM   struct {
		Name string `json:"name"`
	} `json:"svm"`
	Volume struct {
		Name string `json:"name"`
	} `json:"volume"`
	Qtree *struct {
		Name string `json:"name"`
	} `json:"qtree"`
	Users []struct {
		Name string `json:"name"`
	} `json:"users"`
	Space *struct {
		Used struct {
			HardLimitPercent *float64 `json:"hard_limit_percent"`
			SoftLimitPercent *float64 `json:"soft_limit_percent"`
		} `json:"used"`
	} `json:"space"`
	Files *struct {
		Used struct {
			HardLimitPercent *float64 `json:"hard_limit_percent"`
		} `json:"used"`
	} `json:"files"`
}

type SVM struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type SVMRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type NFSService struct {
	SVM   SVMRef `json:"svm"`
	State string `json:"state"`
}

type CIFSService struct {
	SVM     SVMRef `json:"svm"`
	Enabled bool   `json:"enabled"`
}

type IPInterface struct {
	Name  string  `json:"name"`
	State *string `json:"state"`
}
