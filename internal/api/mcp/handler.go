package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/reservation/internal/action"
	"github.com/Zereker/reservation/internal/domain"
)

// Handler handles MCP tool calls
type Handler struct {
	reservations *action.Reservations
}

// NewHandler creates a new MCP handler
func NewHandler(reservations *action.Reservations) *Handler {
	return &Handler{
		reservations: reservations,
	}
}

// ToolCallRequest represents an MCP tool call request
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse represents an MCP tool call response
type ToolCallResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// HandleToolCall handles an MCP tool call
func (h *Handler) HandleToolCall(ctx context.Context, req ToolCallRequest) ToolCallResponse {
	switch req.Name {
	case ToolCreate:
		return h.handleCreate(ctx, req.Arguments)
	case ToolList:
		return h.handleList(ctx, req.Arguments)
	case ToolGet:
		return h.handleGet(ctx, req.Arguments)
	case ToolCancel:
		return h.handleCancel(ctx, req.Arguments)
	default:
		return errorResponse(fmt.Sprintf("unknown tool: %s", req.Name))
	}
}

// handleCreate handles reservation_create tool call
func (h *Handler) handleCreate(ctx context.Context, raw json.RawMessage) ToolCallResponse {
	args, err := arguments(raw)
	if err != nil {
		return failure(err)
	}

	req, err := domain.DecodeCreateRequest(args)
	if err != nil {
		return failure(err)
	}

	res, err := h.reservations.Create(ctx, req)
	if err != nil {
		return failure(err)
	}

	return jsonResponse(fmt.Sprintf("预约成功: #%d", res.ID), res)
}

// handleList handles reservation_list tool call
func (h *Handler) handleList(ctx context.Context, raw json.RawMessage) ToolCallResponse {
	args, err := arguments(raw)
	if err != nil {
		return failure(err)
	}

	roomID, err := domain.DecodeRoomID(args)
	if err != nil {
		return failure(err)
	}

	list := h.reservations.List(ctx, roomID)
	if len(list) == 0 {
		return successResponse(fmt.Sprintf("会议室 %s 暂无预约。", roomID))
	}

	return jsonResponse(formatList(roomID, list), list)
}

// handleGet handles reservation_get tool call
func (h *Handler) handleGet(ctx context.Context, raw json.RawMessage) ToolCallResponse {
	args, err := arguments(raw)
	if err != nil {
		return failure(err)
	}

	ref, err := domain.DecodeReservationRef(args)
	if err != nil {
		return failure(err)
	}

	res, err := h.reservations.Get(ctx, ref.RoomID, ref.ID)
	if err != nil {
		return failure(err)
	}

	return jsonResponse(fmt.Sprintf("预约 #%d", res.ID), res)
}

// handleCancel handles reservation_cancel tool call
func (h *Handler) handleCancel(ctx context.Context, raw json.RawMessage) ToolCallResponse {
	args, err := arguments(raw)
	if err != nil {
		return failure(err)
	}

	ref, err := domain.DecodeReservationRef(args)
	if err != nil {
		return failure(err)
	}

	if err := h.reservations.Cancel(ctx, ref.RoomID, ref.ID); err != nil {
		return failure(err)
	}

	return successResponse(fmt.Sprintf("成功取消预约: %s #%d", ref.RoomID, ref.ID))
}

// arguments 将工具参数解析为通用 map，交给 domain 层统一校验
func arguments(raw json.RawMessage) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return nil, errors.WithMessage(domain.ErrMalformedRequest, "arguments must be a JSON object")
	}
	return args, nil
}

// formatList 格式化预约列表
func formatList(roomID string, list []domain.Reservation) string {
	parts := []string{fmt.Sprintf("## 会议室 %s 的预约", roomID)}
	for _, res := range list {
		parts = append(parts, fmt.Sprintf("- #%d %s [%s, %s)",
			res.ID,
			res.Title,
			res.StartTime.Format("2006-01-02T15:04:05Z07:00"),
			res.EndTime.Format("2006-01-02T15:04:05Z07:00"),
		))
	}
	return strings.Join(parts, "\n")
}

// Helper functions

func successResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

// jsonResponse 返回一段摘要和一段 JSON 数据
func jsonResponse(summary string, data any) ToolCallResponse {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("encode result: %v", err))
	}

	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: summary},
			{Type: "text", Text: string(encoded)},
		},
	}
}

func failure(err error) ToolCallResponse {
	return errorResponse(fmt.Sprintf("%s: %v", domain.ErrorCode(err), err))
}

func errorResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
		IsError: true,
	}
}
