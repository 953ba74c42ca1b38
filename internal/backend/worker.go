package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/config"
	"imaged/internal/manager"
	"imaged/pkg/types"
)

const (
	defaultReadyTimeout = 10 * time.Minute
	defaultStopTimeout  = 10 * time.Second
	stderrTailBytes     = 4096
	maxImageBytes       = 64 << 20
)

// Worker runs the model in a child process speaking a small HTTP protocol:
// GET /healthz reports readiness and POST /generate returns image/png bytes.
// One process is one loaded model; stopping it is what frees accelerator
// memory.
type Worker struct {
	cfg        config.Backend
	artifacts  *Artifacts
	httpClient *http.Client
	log        zerolog.Logger
}

// NewWorker constructs a subprocess-backed backend.
func NewWorker(cfg config.Backend, artifacts *Artifacts, log zerolog.Logger) *Worker {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	return &Worker{
		cfg:       cfg,
		artifacts: artifacts,
		// Timeout=0: every call carries its own context deadline.
		httpClient: &http.Client{Timeout: 0},
		log:        log.With().Str("component", "worker").Logger(),
	}
}

// workerProc is the Resource for one live worker process.
type workerProc struct {
	cmd         *exec.Cmd
	baseURL     string
	pid         int
	exited      chan struct{}
	waitErr     error
	stderr      *tailBuffer
	stopTimeout time.Duration
	log         zerolog.Logger
	stopOnce    sync.Once
}

// Load resolves the artifacts, spawns the worker and waits until it reports
// healthy, exits, or ready_timeout passes.
func (w *Worker) Load(ctx context.Context, src types.ModelSource) (manager.Resource, error) {
	if strings.TrimSpace(w.cfg.WorkerBin) == "" {
		return nil, errors.New("worker binary is not configured")
	}
	if w.artifacts != nil {
		resolved, err := w.artifacts.ResolveSource(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("resolve artifacts: %w", err)
		}
		src = resolved
	}

	host := w.cfg.Host
	var port int
	var err error
	if w.cfg.PortStart > 0 && w.cfg.PortEnd >= w.cfg.PortStart {
		port, err = pickPortInRange(host, w.cfg.PortStart, w.cfg.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port)))

	args := []string{"--model", src.Model, "--host", host, "--port", strconv.Itoa(port)}
	if src.VAE != "" {
		args = append(args, "--vae", src.VAE)
	}
	if src.Encoder != "" {
		args = append(args, "--encoder", src.Encoder)
	}
	if w.cfg.Device != "" {
		args = append(args, "--device", w.cfg.Device)
	}
	if w.cfg.DType != "" {
		args = append(args, "--dtype", w.cfg.DType)
	}
	args = append(args, w.cfg.WorkerArgs...)

	// Not CommandContext: the process must outlive the load call.
	cmd := exec.Command(w.cfg.WorkerBin, args...)
	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	p := &workerProc{
		cmd:         cmd,
		baseURL:     baseURL,
		pid:         cmd.Process.Pid,
		exited:      make(chan struct{}),
		stderr:      stderr,
		stopTimeout: w.cfg.StopTimeout.Duration,
		log:         w.log.With().Int("pid", cmd.Process.Pid).Logger(),
	}
	if p.stopTimeout <= 0 {
		p.stopTimeout = defaultStopTimeout
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	p.log.Info().Str("event", "spawn_start").Str("model", src.Model).Str("url", baseURL).Msg("worker started")

	if err := w.waitReady(ctx, p); err != nil {
		_ = p.Release()
		return nil, err
	}
	p.log.Info().Str("event", "spawn_ready").Str("url", baseURL).Msg("worker ready")
	return p, nil
}

func (w *Worker) waitReady(ctx context.Context, p *workerProc) error {
	timeout := w.cfg.ReadyTimeout.Duration
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-p.exited:
			if p.waitErr != nil {
				return fmt.Errorf("worker exited early: %v; stderr tail: %s", p.waitErr, p.stderr.String())
			}
			return fmt.Errorf("worker exited before ready: %s; stderr tail: %s", p.baseURL, p.stderr.String())
		case <-deadline.C:
			p.log.Warn().Str("event", "spawn_timeout").Dur("timeout", timeout).Msg("worker not ready in time")
			return fmt.Errorf("worker not ready in %s: %s", timeout, p.baseURL)
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if w.healthy(ctx, p.baseURL) {
				return nil
			}
		}
	}
}

func (w *Worker) healthy(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Compute posts one request to the worker and returns the PNG it produced.
func (w *Worker) Compute(ctx context.Context, res manager.Resource, req types.GenerationRequest) ([]byte, error) {
	p, ok := res.(*workerProc)
	if !ok {
		return nil, fmt.Errorf("worker backend got foreign resource %T", res)
	}
	select {
	case <-p.exited:
		return nil, fmt.Errorf("worker process %d has exited: %v; stderr tail: %s", p.pid, p.waitErr, p.stderr.String())
	default:
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "image/png")
	resp, err := w.httpClient.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("worker request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("worker http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/png") {
		return nil, fmt.Errorf("worker returned %q, want image/png", ct)
	}
	return readImage(resp.Body, maxImageBytes)
}

// readImage reads at most limit bytes and fails rather than truncate.
func readImage(r io.Reader, limit int64) ([]byte, error) {
	img, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read worker image: %w", err)
	}
	if int64(len(img)) > limit {
		return nil, fmt.Errorf("worker image exceeds %d bytes", limit)
	}
	return img, nil
}

// Release terminates the worker: SIGTERM first, then kill after the stop
// timeout. Safe to call more than once.
func (p *workerProc) Release() error {
	var err error
	p.stopOnce.Do(func() {
		select {
		case <-p.exited:
			return
		default:
		}
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.exited:
		case <-time.After(p.stopTimeout):
			p.log.Warn().Dur("stop_timeout", p.stopTimeout).Msg("worker ignored SIGTERM; killing")
			if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = fmt.Errorf("kill worker %d: %w", p.pid, kerr)
			}
			<-p.exited
		}
		p.log.Info().Str("event", "spawn_stop").Msg("worker stopped")
	})
	return err
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected addr: %s", l.Addr())
	}
	return addr.Port, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
