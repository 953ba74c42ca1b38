package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/backend"
	"imaged/internal/httpapi"
	"imaged/internal/manager"
	"imaged/internal/outputs"
	"imaged/pkg/types"
)

// newServer wires the real manager, the synthetic backend and an output
// store in a temp dir behind the HTTP API.
func newServer(t *testing.T, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()
	if cfg.Backend == nil {
		cfg.Backend = backend.NewSynthetic(10*time.Millisecond, zerolog.Nop())
	}
	if cfg.Source.Model == "" {
		cfg.Source = types.ModelSource{Model: "synthetic/model"}
	}
	mgr := manager.NewWithConfig(cfg)
	t.Cleanup(func() { _ = mgr.Close() })
	store, err := outputs.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr, store))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func generate(t *testing.T, baseURL, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(baseURL+"/api/generate", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/generate: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func status(t *testing.T, baseURL string) types.StatusResponse {
	t.Helper()
	resp, b := httpGet(t, baseURL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status: %d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("/status json: %v", err)
	}
	return st
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}
