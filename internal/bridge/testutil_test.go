package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"imaged/pkg/types"
)

type fakeAPI struct {
	genErr  error
	listErr error
	infoErr error
	images  []types.ImageInfo
	lastReq *types.GenerationRequest
}

func (f *fakeAPI) Generate(ctx context.Context, req types.GenerationRequest) (types.GenerateResponse, error) {
	f.lastReq = &req
	if f.genErr != nil {
		return types.GenerateResponse{}, f.genErr
	}
	return types.GenerateResponse{
		Status:     "success",
		Image:      "/outputs/output_1_abcd1234.png",
		Filename:   "output_1_abcd1234.png",
		Seed:       req.Seed,
		DurationMS: 1200,
	}, nil
}

func (f *fakeAPI) ListImages(ctx context.Context) ([]types.ImageInfo, error) {
	return f.images, f.listErr
}

func (f *fakeAPI) ImageInfo(ctx context.Context, filename string) (types.ImageInfo, error) {
	if f.infoErr != nil {
		return types.ImageInfo{}, f.infoErr
	}
	for _, img := range f.images {
		if img.Filename == filename {
			return img, nil
		}
	}
	return types.ImageInfo{}, &APIError{Status: 404, Detail: "Image not found"}
}

func (f *fakeAPI) URL(path string) string { return "http://imaged.test" + path }

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// exchange feeds lines to a server and returns the decoded response lines.
func exchange(t *testing.T, api API, lines ...string) []wireResponse {
	t.Helper()
	s := NewServer(api, "test", zerolog.Nop())
	var out strings.Builder
	if err := s.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"), &out); err != nil {
		t.Fatalf("serve: %v", err)
	}
	var resps []wireResponse
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var r wireResponse
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("response line %q: %v", sc.Text(), err)
		}
		resps = append(resps, r)
	}
	return resps
}

func one(t *testing.T, api API, line string) wireResponse {
	t.Helper()
	resps := exchange(t, api, line)
	if len(resps) != 1 {
		t.Fatalf("want 1 response, got %d", len(resps))
	}
	return resps[0]
}

func callResult(t *testing.T, r wireResponse) CallResult {
	t.Helper()
	if r.Error != nil {
		t.Fatalf("rpc error: %+v", r.Error)
	}
	var cr CallResult
	if err := json.Unmarshal(r.Result, &cr); err != nil {
		t.Fatalf("result: %v", err)
	}
	return cr
}
