// Package server implements the server half of the MCP stdio protocol.
//
// Requests arrive as newline-delimited JSON-RPC 2.0 on a reader (normally
// stdin) and responses are written to a writer (normally stdout). The server
// dispatches tools/call requests to registered tools.Tool implementations.
//
// Information Hiding:
// - JSON-RPC framing and error codes hidden
// - Tool schema generation hidden
// - Request loop lifecycle hidden behind Serve
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/richinex/theseus/tools"
)

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Server serves MCP requests over a stdio-style transport.
type Server struct {
	name     string
	version  string
	registry *tools.Registry

	writeMu sync.Mutex
}

// New creates an MCP server exposing the tools in the registry.
func New(name, version string, registry *tools.Registry) *Server {
	return &Server{
		name:     name,
		version:  version,
		registry: registry,
	}
}

// request is an incoming JSON-RPC request. A nil ID marks a notification.
type request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params"`
}

// response is an outgoing JSON-RPC response.
type response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  interface{}      `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// callParams are the parameters of a tools/call request.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// textContent is a single text block in a tools/call result.
type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// callResult is the result of a tools/call request.
type callResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// toolDescriptor describes a tool in a tools/list result.
type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Serve reads requests from r and writes responses to w until r is
// exhausted or ctx is canceled. Returns nil on clean EOF.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := s.write(w, errorResponse(nil, codeParseError, "parse error")); err != nil {
				return err
			}
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			continue // notification, no response
		}
		if err := s.write(w, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// dispatch routes a request to its handler. Returns nil for notifications.
func (s *Server) dispatch(ctx context.Context, req *request) *response {
	if req.ID == nil {
		// Notifications (e.g. notifications/initialized) get no reply.
		return nil
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request")
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *request) *response {
	return resultResponse(req.ID, map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    s.name,
			"version": s.version,
		},
	})
}

func (s *Server) handleToolsList(req *request) *response {
	names := s.registry.Names()
	descriptors := make([]toolDescriptor, 0, len(names))
	for _, name := range names {
		tool, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		meta := tool.Metadata()
		schema, err := inputSchema(meta)
		if err != nil {
			return errorResponse(req.ID, codeInternalError, fmt.Sprintf("failed to build schema for %s: %v", name, err))
		}
		descriptors = append(descriptors, toolDescriptor{
			Name:        meta.Name,
			Description: meta.Description,
			InputSchema: schema,
		})
	}
	return resultResponse(req.ID, map[string]interface{}{"tools": descriptors})
}

func (s *Server) handleToolsCall(ctx context.Context, req *request) *response {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params")
	}
	if params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "tool name is required")
	}

	tool, ok := s.registry.Get(params.Name)
	if !ok {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	if err := tool.Validate(args); err != nil {
		return resultResponse(req.ID, callResult{
			Content: []textContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return errorResponse(req.ID, codeInternalError, err.Error())
	}

	// Tool failures travel inside the result, matching MCP semantics.
	if !result.Success() {
		return resultResponse(req.ID, callResult{
			Content: []textContent{{Type: "text", Text: result.Error.Error()}},
			IsError: true,
		})
	}
	return resultResponse(req.ID, callResult{
		Content: []textContent{{Type: "text", Text: result.Output}},
	})
}

// inputSchema converts tool metadata into a JSON Schema object.
func inputSchema(meta tools.ToolMetadata) (json.RawMessage, error) {
	properties := make(map[string]interface{}, len(meta.Parameters))
	var required []string

	for _, p := range meta.Parameters {
		prop := map[string]interface{}{
			"type":        jsonSchemaType(p.ParamType),
			"description": p.Description,
		}
		if len(p.Items) > 0 {
			prop["items"] = p.Items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return json.Marshal(schema)
}

// jsonSchemaType maps tool parameter types to JSON Schema types.
func jsonSchemaType(paramType string) string {
	switch paramType {
	case "string", "integer", "number", "boolean", "array", "object":
		return paramType
	case "int", "uint":
		return "integer"
	case "float":
		return "number"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

func resultResponse(id *json.RawMessage, result interface{}) *response {
	return &response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id *json.RawMessage, code int, message string) *response {
	return &response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

func (s *Server) write(w io.Writer, resp *response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
