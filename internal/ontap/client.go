// Package ontap is a minimal read-mostly client for the ONTAP REST API as
// exposed by an FSx for NetApp ONTAP admin endpoint.
package ontap

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const probeTimeout = 5 * time.Second

// StatusError reports a response with a non-200 status code. Callers that
// need to tell a refused API apart from an unreachable cluster check for it
// with errors.As.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API call to %s failed, HTTP status code %d", e.URL, e.Code)
}

// Client issues authenticated GETs against a single cluster. The admin
// endpoint presents a self-signed certificate, so verification is disabled.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(host, username, password string) *Client {
	return &Client{
		baseURL:  "https://" + host,
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %s", url)
	}
	req.SetBasicAuth(c.username, c.password)
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading response from %s", url)
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decoding response from %s", url)
}

// listEnvelope is the common shape of ONTAP collection responses. Responses
// larger than one page carry a next link.
type listEnvelope struct {
	Records []json.RawMessage `json:"records"`
	Links   struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
}

// getRecords fetches a collection, following next links until the last page,
// and decodes the accumulated records into out (a pointer to a slice).
func (c *Client) getRecords(path string, out interface{}) error {
	first := path
	var records []json.RawMessage
	for path != "" {
		var page listEnvelope
		if err := c.getJSON(context.Background(), path, &page); err != nil {
			return err
		}
		records = append(records, page.Records...)
		path = page.Links.Next.Href
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(rec)
	}
	buf.WriteByte(']')
	return errors.Wrapf(json.Unmarshal(buf.Bytes(), out), "decoding records from %s", first)
}

// Cluster probes the cluster. It uses a short timeout because it doubles as
// the reachability check gating the whole poll cycle.
func (c *Client) Cluster() (*ClusterInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	var info ClusterInfo
	if err := c.getJSON(ctx, "/api/cluster?fields=version,name,timezone", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) EmsEvents() ([]EmsEvent, error) {
	var events []EmsEvent
	err := c.getRecords("/api/support/ems/events?return_timeout=15", &events)
	return events, err
}

func (c *Client) SnapMirrorRelationships() ([]SnapMirrorRelationship, error) {
	var rels []SnapMirrorRelationship
	err := c.getRecords("/api/snapmirror/relationships?fields=*&return_timeout=15", &rels)
	return rels, err
}

func (c *Client) Schedule(uuid string) (*Schedule, error) {
	var sched Schedule
	path := fmt.Sprintf("/api/cluster/schedules/%s?fields=*&return_timeout=15", uuid)
	if err := c.getJSON(context.Background(), path, &sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

func (c *Client) SnapMirrorPolicy(uuid string) (*SnapMirrorPolicy, error) {
	var policy SnapMirrorPolicy
	path := fmt.Sprintf("/api/snapmirror/policies/%s?fields=*&return_timeout=15", uuid)
	if err := c.getJSON(context.Background(), path, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (c *Client) Aggregates() ([]Aggregate, error) {
	var aggrs []Aggregate
	err := c.getRecords("/api/storage/aggregates?fields=space&return_timeout=15", &aggrs)
	return aggrs, err
}

// Volumes lists volumes. FlexGroup constituents are excluded from the normal
// listing and must be asked for explicitly.
func (c *Client) Volumes(constituents bool) ([]Volume, error) {
	path := "/api/storage/volumes?fields=space,files,svm,state&return_timeout=15"
	if constituents {
		path = "/api/storage/volumes?is_constituent=true&fields=space,files,svm,state&return_timeout=15"
	}
	var vols []Volume
	err := c.getRecords(path, &vols)
	return vols, err
}

func (c *Client) QuotaReports() ([]QuotaReport, error) {
	var reports []QuotaReport
	err := c.getRecords("/api/storage/quota/reports?fields=*&return_timeout=30", &reports)
	return reports, err
}

func (c *Client) SVMs() ([]SVM, error) {
	var svms []SVM
	err := c.getRecords("/api/svm/svms?fields=state&return_timeout=15", &svms)
	return svms, err
}

func (c *Client) NFSServices() ([]NFSService, error) {
	var svcs []NFSService
	err := c.getRecords("/api/protocols/nfs/services?fields=state&return_timeout=15", &svcs)
	return svcs, err
}

func (c *Client) CIFSServices() ([]CIFSService, error) {
	var svcs []CIFSService
	err := c.getRecords("/api/protocols/cifs/services?fields=enabled&return_timeout=15", &svcs)
	return svcs, err
}

func (c *Client) IPInterfaces() ([]IPInterface, error) {
	var ifaces []IPInterface
	err := c.getRecords("/api/network/ip/interfaces?fields=state", &ifaces)
	return ifaces, err
}

// NodeCount reports the number of nodes via the CLI passthrough; there is no
// equivalent public REST endpoint.
func (c *Client) NodeCount() (int, error) {
	var resp struct {
		NumRecords int `json:"num_records"`
	}
	err := c.getJSON(context.Background(), "/api/private/cli/system/node/virtual-machine/instance/show-settings", &resp)
	return resp.NumRecords, err
}
