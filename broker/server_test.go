package broker

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clustermeta/broker/meta"
)

func newTestServer() (*Server, *httptest.Server) {
	s := NewServer(meta.New(false), nil, nil)
	return s, httptest.NewServer(s.httpServer.Handler)
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestVersionEndpoint(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v2/version", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestAddProxyThenCreateCluster(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	for i := 0; i < 4; i++ {
		addr := string(rune('a' + i))
		body := map[string]interface{}{
			"address": "proxy-" + addr,
			"host":    "host-" + addr,
			"nodes":   []string{"proxy-" + addr + "-n0", "proxy-" + addr + "-n1"},
		}
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v2/proxies/meta", body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add proxy %d: want 200, got %d", i, resp.StatusCode)
		}
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v2/clusters/meta/demo", map[string]int{"node_number": 8})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create cluster: want 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v2/clusters/info/demo", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cluster info: want 200, got %d", resp.StatusCode)
	}
	var info meta.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.MasterCount != 4 {
		t.Fatalf("want 4 masters, got %d", info.MasterCount)
	}
}

func TestCreateClusterConflictReturns409(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v2/clusters/meta/demo", map[string]int{"node_number": 8})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 (no free proxies -> NoAvailableResource), got %d", resp.StatusCode)
	}
}

func TestGetMissingClusterReturns404(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v2/clusters/info/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func TestEpochForceBumpRejectsSmallEpoch(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()
	resp := doJSON(t, http.MethodPut, ts.URL+"/api/v2/epoch/0", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 SmallEpoch, got %d", resp.StatusCode)
	}
}
