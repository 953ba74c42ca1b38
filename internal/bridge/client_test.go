package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/backend"
	"imaged/internal/httpapi"
	"imaged/internal/manager"
	"imaged/internal/outputs"
	"imaged/pkg/types"
)

func TestClient_ErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type=%q", ct)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "manager closed", Detail: "manager closed", Code: 503})
		default:
			http.Error(w, "plain failure", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	_, err := c.Generate(context.Background(), types.DefaultGenerationRequest())
	ae, ok := err.(*APIError)
	if !ok || ae.Status != 503 || ae.Detail != "manager closed" {
		t.Fatalf("err=%v", err)
	}
	_, err = c.ListImages(context.Background())
	if ae, ok := err.(*APIError); !ok || ae.Detail != "plain failure" {
		t.Fatalf("err=%v", err)
	}
	if got := c.URL("/outputs/x.png"); got != srv.URL+"/outputs/x.png" {
		t.Fatalf("URL=%q", got)
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	if _, err := c.ListImages(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

// TestBridgeAgainstServer drives the tools through the HTTP API, the real
// manager and the synthetic backend.
func TestBridgeAgainstServer(t *testing.T) {
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Backend: backend.NewSynthetic(0, zerolog.Nop()),
		Source:  types.ModelSource{Model: "synthetic/model"},
	})
	t.Cleanup(func() { _ = mgr.Close() })
	store, err := outputs.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr, store))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, 10*time.Second)
	resps := exchange(t, client,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"generate_image","arguments":{"prompt":"bridge","image_size":256,"denoising_steps":2}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"list_images"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"generate_image","arguments":{"prompt":""}}}`,
	)
	if len(resps) != 3 {
		t.Fatalf("responses=%d", len(resps))
	}
	gen := callResult(t, resps[0])
	if gen.IsError || gen.Content[1].Resource == nil {
		t.Fatalf("generate: %+v", gen)
	}
	imgResp, err := http.Get(gen.Content[1].Resource.URI)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	b, _ := io.ReadAll(imgResp.Body)
	imgResp.Body.Close()
	if imgResp.StatusCode != http.StatusOK || len(b) == 0 {
		t.Fatalf("download status=%d len=%d", imgResp.StatusCode, len(b))
	}
	if list := callResult(t, resps[1]); !strings.HasPrefix(list.Content[0].Text, "Found 1 generated images:") {
		t.Fatalf("list: %+v", list)
	}
	if bad := callResult(t, resps[2]); !bad.IsError || !strings.Contains(bad.Content[0].Text, "prompt is required") {
		t.Fatalf("invalid request: %+v", bad)
	}
}
