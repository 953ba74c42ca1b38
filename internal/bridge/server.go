package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// maxLineBytes bounds one incoming message.
const maxLineBytes = 16 << 20

// Server answers MCP requests using an API client.
type Server struct {
	api     API
	name    string
	version string
	log     zerolog.Logger
}

// NewServer returns a bridge server. Logs must not go to stdout; the
// protocol owns it.
func NewServer(api API, version string, log zerolog.Logger) *Server {
	return &Server{api: api, name: "imaged", version: version, log: log.With().Str("component", "bridge").Logger()}
}

// Serve reads requests from in until EOF or ctx is done, writing responses
// to out. Requests are handled one at a time in arrival order.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	enc := json.NewEncoder(out)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		resp, ok := s.handle(ctx, line)
		if !ok {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

// handle processes one message. ok is false when no reply is due.
func (s *Server) handle(ctx context.Context, line []byte) (resp rpcResponse, ok bool) {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn().Err(err).Msg("parse error")
		return newError(nil, codeParseError, "parse error: "+err.Error()), true
	}
	if req.isNotification() {
		if !answersWithoutID(req.Method) {
			s.log.Debug().Str("method", req.Method).Msg("notification")
			return rpcResponse{}, false
		}
		// Older clients send requests without an id and still read the reply.
		req.ID = json.RawMessage("null")
	}
	if req.Method == "" {
		return newError(req.ID, codeInvalidRequest, "missing method"), true
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("method", req.Method).Msg("handler panic")
			resp, ok = newError(req.ID, codeInternalError, fmt.Sprintf("internal error: %v", r)), true
		}
	}()

	switch req.Method {
	case "initialize":
		return newResult(req.ID, initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		}), true
	case "ping":
		return newResult(req.ID, map[string]any{}), true
	case "tools/list":
		return newResult(req.ID, toolsListResult{Tools: tools}), true
	case "tools/call":
		var p callParams
		if err := decodeArgs(req.Params, &p); err != nil || p.Name == "" {
			return newError(req.ID, codeInvalidParams, "tools/call needs a tool name"), true
		}
		s.log.Info().Str("tool", p.Name).Msg("tool call")
		res, err := s.call(ctx, p.Name, p.Arguments)
		if err != nil {
			return newError(req.ID, codeInvalidParams, err.Error()), true
		}
		if res.IsError {
			s.log.Warn().Str("tool", p.Name).Str("error", res.Content[0].Text).Msg("tool failed")
		}
		return newResult(req.ID, res), true
	}
	return newError(req.ID, codeMethodNotFound, "method not found: "+req.Method), true
}

// answersWithoutID reports whether an id-less message is a request that
// gets a reply under id null instead of being treated as a notification.
func answersWithoutID(method string) bool {
	switch method {
	case "initialize", "ping", "tools/list", "tools/call":
		return true
	}
	return false
}

func newResult(id json.RawMessage, v any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: v}
}

func newError(id json.RawMessage, code int, msg string) rpcResponse {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}}
}
