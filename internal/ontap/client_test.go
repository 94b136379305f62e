package ontap

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)
	return NewClient(strings.TrimPrefix(server.URL, "https://"), "admin", "secret")
}

func TestGetRecordsFollowsNextLinks(t *testing.T) {
	var authed bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			authed = true
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/svm/svms") && r.URL.Query().Get("page") == "2":
			fmt.Fprint(w, `{"records":[{"uuid":"svm-3","name":"svm3","state":"running"}]}`)
		case strings.HasPrefix(r.URL.Path, "/api/svm/svms"):
			fmt.Fprint(w, `{"records":[
				{"uuid":"svm-1","name":"svm1","state":"running"},
				{"uuid":"svm-2","name":"svm2","state":"stopped"}],
				"_links":{"next":{"href":"/api/svm/svms?page=2"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	svms, err := client.SVMs()
	require.NoError(t, err)
	require.Len(t, svms, 3)
	assert.Equal(t, "svm1", svms[0].Name)
	assert.Equal(t, "stopped", svms[1].State)
	assert.Equal(t, "svm3", svms[2].Name)
	assert.True(t, authed, "requests must carry basic auth")
}

func TestGetRecordsRelativeNextLink(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"records":[{"uuid":"aggr-2","name":"aggr2"}]}`)
			return
		}
		// Some endpoints return next links without the leading slash.
		fmt.Fprint(w, `{"records":[{"uuid":"aggr-1","name":"aggr1"}],
			"_links":{"next":{"href":"api/storage/aggregates?page=2"}}}`)
	}))

	aggrs, err := client.Aggregates()
	require.NoError(t, err)
	require.Len(t, aggrs, 2)
	assert.Equal(t, "aggr2", aggrs[1].Name)
}

func TestGetRecordsReportsHTTPStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))

	_, err := client.EmsEvents()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP status code 403")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
}

func TestClusterProbe(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/cluster", r.URL.Path)
		fmt.Fprint(w, `{"name":"fsxn1","version":{"full":"NetApp Release 9.13.1P6: Tue Dec 05 16:06:25 UTC 2023"},"timezone":{"name":"America/New_York"}}`)
	}))

	info, err := client.Cluster()
	require.NoError(t, err)
	assert.Equal(t, "fsxn1", info.Name)
	assert.Equal(t, "America/New_York", info.Timezone.Name)
}

func TestNodeCount(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"num_records":2}`)
	}))

	n, err := client.NodeCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
