package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/Zereker/reservation/internal/action"
	"github.com/Zereker/reservation/pkg/log"
)

const (
	protocolVersion = "2024-11-05"

	// 单行消息上限
	maxMessageBytes = 1 << 20
)

// JSON-RPC 2.0 错误码
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server speaks MCP over newline delimited JSON-RPC.
type Server struct {
	logger  *slog.Logger
	handler *Handler
	info    peerInfo
	methods map[string]methodFunc
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Name    string
	Version string
}

// methodFunc 处理一个 JSON-RPC 方法，返回 result 或 rpc 错误
type methodFunc func(ctx context.Context, params json.RawMessage) (any, *Error)

// NewServer creates a new MCP server
func NewServer(reservations *action.Reservations, config ServerConfig) *Server {
	if config.Name == "" {
		config.Name = "reservation"
	}

	s := &Server{
		logger:  log.Logger("mcp"),
		handler: NewHandler(reservations),
		info:    peerInfo{Name: config.Name, Version: config.Version},
	}
	s.methods = map[string]methodFunc{
		"initialize":                s.initialize,
		"initialized":               s.initialized,
		"notifications/initialized": s.initialized,
		"tools/list":                s.listTools,
		"tools/call":                s.callTool,
		"ping":                      s.ping,
	}
	return s
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// notification 没有 id，不回复
func (r request) notification() bool { return r.ID == nil }

type jsonRPCResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func rpcError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

type peerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RunStdio serves on the process's stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve handles one message per line from r and writes replies to w. It
// returns nil once r is exhausted and ctx.Err() once ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("serving", "name", s.info.Name, "version", s.info.Version)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxMessageBytes)
	enc := json.NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return errors.Wrap(err, "read message")
			}
			s.logger.Info("input closed")
			return nil
		}

		resp := s.dispatch(ctx, scanner.Bytes())
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			s.logger.Error("write response failed", "error", err)
		}
	}
}

// dispatch 解析一行消息并路由到方法表；返回 nil 表示无需回复
func (s *Server) dispatch(ctx context.Context, line []byte) *jsonRPCResponse {
	if isBlank(line) {
		return nil
	}

	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return &jsonRPCResponse{JSONRPC: "2.0", Error: rpcError(codeParseError, "Parse error", err.Error())}
	}

	var (
		result any
		rpcErr *Error
	)
	if method, ok := s.methods[req.Method]; ok {
		result, rpcErr = method(ctx, req.Params)
	} else {
		rpcErr = rpcError(codeMethodNotFound, "Method not found", req.Method)
	}

	if req.notification() {
		if rpcErr != nil {
			s.logger.Warn("notification failed", "method", req.Method, "error", rpcErr.Message)
		}
		return nil
	}
	return &jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}
}

func isBlank(line []byte) bool {
	for _, b := range line {
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}

func (s *Server) initialize(_ context.Context, params json.RawMessage) (any, *Error) {
	var p struct {
		ProtocolVersion string   `json:"protocolVersion"`
		ClientInfo      peerInfo `json:"clientInfo"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}

	s.logger.Info("initialize",
		"client", p.ClientInfo.Name,
		"client_version", p.ClientInfo.Version,
		"protocol", p.ProtocolVersion,
	)

	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      s.info,
	}, nil
}

func (s *Server) initialized(context.Context, json.RawMessage) (any, *Error) {
	s.logger.Info("client initialized")
	return struct{}{}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (any, *Error) {
	return map[string]any{"tools": ReservationTools}, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *Error) {
	var call ToolCallRequest
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, rpcError(codeInvalidParams, "Invalid params", err.Error())
	}

	s.logger.Info("tools/call", "tool", call.Name)
	return s.handler.HandleToolCall(ctx, call), nil
}

func (s *Server) ping(context.Context, json.RawMessage) (any, *Error) {
	return struct{}{}, nil
}
