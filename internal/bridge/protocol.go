// Package bridge exposes the image API to tool-calling clients as a Model
// Context Protocol server over stdio. Each line on stdin is one JSON-RPC 2.0
// message; each request gets exactly one response line on stdout. All work
// goes through the HTTP API, so the bridge never touches the model directly.
package bridge

import "encoding/json"

// ProtocolVersion is the MCP revision the bridge speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether the message carries no id and so expects
// no reply.
func (r rpcRequest) isNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

// Tool describes one callable tool in tools/list.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is one block of a tool result: text, or a resource reference.
type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	Resource *Resource `json:"resource,omitempty"`
}

// Resource points at a generated image.
type Resource struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
}

// CallResult is the result of tools/call. Tool-level failures are reported
// with IsError rather than as JSON-RPC errors.
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

func textResult(s string) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: s}}}
}

func errorResult(s string) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: s}}, IsError: true}
}
