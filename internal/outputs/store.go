// Package outputs stores generated images on disk with a JSON sidecar
// recording the parameters that produced each one.
package outputs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"imaged/internal/common/fsutil"
	"imaged/pkg/types"
)

// URLPrefix is where the HTTP front end serves stored images.
const URLPrefix = "/outputs/"

var (
	ErrNotFound    = errors.New("image not found")
	ErrInvalidName = errors.New("invalid image name")
)

// Store is a flat directory of PNG files.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	p, err := fsutil.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("outputs dir: %w", err)
	}
	return &Store{dir: p, now: time.Now}, nil
}

// Dir returns the absolute-or-expanded directory backing the store.
func (s *Store) Dir() string { return s.dir }

type sidecar struct {
	Request    types.GenerationRequest `json:"request"`
	DurationMS int64                   `json:"duration_ms"`
	CreatedAt  time.Time               `json:"created_at"`
}

// Save writes the image as output_<unix>_<8 hex>.png plus a .json sidecar.
func (s *Store) Save(res types.GenerationResult) (types.ImageInfo, error) {
	if len(res.Image) == 0 {
		return types.ImageInfo{}, errors.New("empty image")
	}
	now := s.now()
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("output_%d_%s.png", now.Unix(), id)
	path := filepath.Join(s.dir, name)

	n, err := fsutil.WriteFileAtomic(path, bytes.NewReader(res.Image))
	if err != nil {
		return types.ImageInfo{}, fmt.Errorf("save %s: %w", name, err)
	}
	meta, err := json.MarshalIndent(sidecar{Request: res.Request, DurationMS: res.Duration.Milliseconds(), CreatedAt: now.UTC()}, "", "  ")
	if err == nil {
		_, err = fsutil.WriteFileAtomic(sidecarPath(path), bytes.NewReader(meta))
	}
	if err != nil {
		// No image without its sidecar.
		_ = os.Remove(path)
		return types.ImageInfo{}, fmt.Errorf("save %s metadata: %w", name, err)
	}
	req := res.Request
	return types.ImageInfo{
		Filename:    name,
		URL:         URLPrefix + name,
		SizeBytes:   n,
		CreatedUnix: now.Unix(),
		Request:     &req,
	}, nil
}

// List returns stored images, newest first.
func (s *Store) List() ([]types.ImageInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]types.ImageInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || validName(e.Name()) != nil {
			continue
		}
		info, err := s.Stat(e.Name())
		if err != nil {
			// removed between ReadDir and Stat
			continue
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedUnix != out[j].CreatedUnix {
			return out[i].CreatedUnix > out[j].CreatedUnix
		}
		return out[i].Filename > out[j].Filename
	})
	return out, nil
}

// Stat describes one stored image.
func (s *Store) Stat(name string) (types.ImageInfo, error) {
	path, err := s.path(name)
	if err != nil {
		return types.ImageInfo{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.ImageInfo{}, ErrNotFound
		}
		return types.ImageInfo{}, err
	}
	if !fi.Mode().IsRegular() {
		return types.ImageInfo{}, ErrNotFound
	}
	info := types.ImageInfo{
		Filename:    name,
		URL:         URLPrefix + name,
		SizeBytes:   fi.Size(),
		CreatedUnix: fi.ModTime().Unix(),
	}
	if b, err := os.ReadFile(sidecarPath(path)); err == nil {
		var sc sidecar
		if json.Unmarshal(b, &sc) == nil {
			info.Request = &sc.Request
			if !sc.CreatedAt.IsZero() {
				info.CreatedUnix = sc.CreatedAt.Unix()
			}
		}
	}
	return info, nil
}

// Open returns the image file for reading. The caller closes it.
func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) path(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		strings.Contains(name, "..") || strings.HasPrefix(name, ".") ||
		!strings.EqualFold(filepath.Ext(name), ".png") {
		return ErrInvalidName
	}
	return nil
}

func sidecarPath(pngPath string) string {
	return strings.TrimSuffix(pngPath, filepath.Ext(pngPath)) + ".json"
}
