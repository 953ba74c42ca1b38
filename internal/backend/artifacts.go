package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/common/fsutil"
	"imaged/internal/config"
	"imaged/pkg/types"
)

// Artifacts resolves model references to local files, downloading hub files
// into a cache directory on first use.
//
// A reference is one of:
//   - an existing local path, used as is
//   - org/repo/path/to/file, fetched from {hub}/{org}/{repo}/resolve/{revision}/{file}
//   - org/repo, passed through for the worker to resolve itself
type Artifacts struct {
	hubURL   string
	revision string
	cacheDir string
	token    string
	client   *http.Client
	log      zerolog.Logger
}

// NewArtifacts builds a resolver from the model config. HF_TOKEN, when set, is
// sent as a bearer token on downloads.
func NewArtifacts(cfg config.Model, log zerolog.Logger) *Artifacts {
	rev := cfg.Revision
	if rev == "" {
		rev = "main"
	}
	return &Artifacts{
		hubURL:   strings.TrimRight(cfg.HubURL, "/"),
		revision: rev,
		cacheDir: cfg.CacheDir,
		token:    os.Getenv("HF_TOKEN"),
		// downloads are bounded by the caller's context
		client: &http.Client{Timeout: 0},
		log:    log.With().Str("component", "artifacts").Logger(),
	}
}

// ResolveSource resolves every non-empty entry of src.
func (a *Artifacts) ResolveSource(ctx context.Context, src types.ModelSource) (types.ModelSource, error) {
	var out types.ModelSource
	var err error
	if out.Model, err = a.Resolve(ctx, src.Model); err != nil {
		return out, fmt.Errorf("model: %w", err)
	}
	if out.VAE, err = a.Resolve(ctx, src.VAE); err != nil {
		return out, fmt.Errorf("vae: %w", err)
	}
	if out.Encoder, err = a.Resolve(ctx, src.Encoder); err != nil {
		return out, fmt.Errorf("encoder: %w", err)
	}
	return out, nil
}

// Resolve returns a local path (or a pass-through repository id) for ref.
func (a *Artifacts) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	local, err := fsutil.ExpandHome(ref)
	if err != nil {
		return "", err
	}
	if fsutil.PathExists(local) {
		return local, nil
	}
	if filepath.IsAbs(local) || strings.HasPrefix(ref, ".") || strings.HasPrefix(ref, "~") {
		return "", fmt.Errorf("%s: %w", ref, os.ErrNotExist)
	}
	parts := strings.SplitN(ref, "/", 3)
	switch len(parts) {
	case 2:
		return ref, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return "", fmt.Errorf("invalid hub reference %q", ref)
		}
		return a.fetch(ctx, parts[0], parts[1], parts[2])
	default:
		return "", fmt.Errorf("%s: %w", ref, os.ErrNotExist)
	}
}

func (a *Artifacts) fetch(ctx context.Context, org, repo, file string) (string, error) {
	if a.hubURL == "" {
		return "", errors.New("hub download requested but model.hub_url is empty")
	}
	cacheDir, err := fsutil.EnsureDir(a.cacheDir)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(cacheDir, org, repo, filepath.FromSlash(file))
	if fsutil.IsFile(dst) {
		a.log.Debug().Str("path", dst).Msg("artifact cache hit")
		return dst, nil
	}

	u := fmt.Sprintf("%s/%s/%s/resolve/%s/%s", a.hubURL, url.PathEscape(org), url.PathEscape(repo), url.PathEscape(a.revision), file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	start := time.Now()
	a.log.Info().Str("url", u).Msg("downloading artifact")
	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("download %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("download %s: %s: %s", u, resp.Status, strings.TrimSpace(string(b)))
	}
	n, err := fsutil.WriteFileAtomic(dst, resp.Body)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", u, err)
	}
	a.log.Info().Str("path", dst).Int64("bytes", n).Dur("dur", time.Since(start)).Msg("artifact cached")
	return dst, nil
}
