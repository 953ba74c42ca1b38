package backend

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"imaged/internal/config"
)

// buildFakeWorker builds the fake worker used for subprocess tests and returns its path.
func buildFakeWorker(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := filepath.Join(t.TempDir(), "fake_worker")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_worker.go")
	cmd.Dir = "."
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake worker: %v: %s", err, string(out))
	}
	return bin
}

func workerConfig(bin string, extra ...string) config.Backend {
	cfg := config.Default().Backend
	cfg.WorkerBin = bin
	cfg.WorkerArgs = extra
	cfg.ReadyTimeout = config.Seconds(5)
	cfg.StopTimeout = config.Duration{Duration: 500 * time.Millisecond}
	return cfg
}
