package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"imaged/internal/outputs"
	"imaged/pkg/types"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nfake image bytes")

type mockService struct {
	mu      sync.Mutex
	status  types.StatusResponse
	ready   bool
	genErr  error
	block   bool
	idle    time.Duration
	lastReq *types.GenerationRequest
	calls   int
}

func (m *mockService) Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResult, error) {
	m.mu.Lock()
	m.calls++
	m.lastReq = &req
	err, block := m.genErr, m.block
	m.mu.Unlock()
	if block {
		<-ctx.Done()
		return types.GenerationResult{}, ctx.Err()
	}
	if err != nil {
		return types.GenerationResult{}, err
	}
	return types.GenerationResult{Image: fakePNG, MIMEType: "image/png", Request: req, Duration: 1500 * time.Millisecond}, nil
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) IdleTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idle
}

func (m *mockService) SetIdleTimeout(d time.Duration) {
	m.mu.Lock()
	m.idle = d
	m.mu.Unlock()
}

func (m *mockService) request() *types.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func newTestStore(t *testing.T) *outputs.Store {
	t.Helper()
	s, err := outputs.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return s
}

func newTestMux(t *testing.T, svc *mockService) (http.Handler, *outputs.Store) {
	t.Helper()
	store := newTestStore(t)
	return NewMux(svc, store), store
}

func postJSON(h http.Handler, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// withUIOptions sets the UI globals for one test.
func withUIOptions(t *testing.T, enabled, override bool) {
	t.Helper()
	prevEnabled, prevOverride := uiEnabled, allowIdleOverride
	SetUIOptions(enabled, override)
	t.Cleanup(func() { SetUIOptions(prevEnabled, prevOverride) })
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
