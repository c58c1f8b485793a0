package mcp

// Tool represents an MCP tool definition
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema defines the JSON schema for tool input
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a property in the schema
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Format      string              `json:"format,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Default     any                 `json:"default,omitempty"`
}

// Tool names
const (
	ToolCreate = "reservation_create"
	ToolList   = "reservation_list"
	ToolGet    = "reservation_get"
	ToolCancel = "reservation_cancel"
)

var (
	roomIDProperty = Property{
		Type:        "string",
		Description: "会议室标识",
	}
	reservationIDProperty = Property{
		Type:        "integer",
		Description: "预约 ID（创建时返回）",
	}
)

// ReservationTools defines all available MCP tools for reservation operations
var ReservationTools = []Tool{
	{
		Name:        ToolCreate,
		Description: "为会议室创建预约。时间区间为左闭右开 [start_time, end_time)，开始时间必须晚于当前时间，且不能与同一会议室的已有预约重叠。",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"room_id": roomIDProperty,
				"title": {
					Type:        "string",
					Description: "会议标题",
				},
				"start_time": {
					Type:        "string",
					Format:      "date-time",
					Description: "开始时间，RFC 3339 格式且必须带时区，例如 2030-01-20T09:00:00+08:00",
				},
				"end_time": {
					Type:        "string",
					Format:      "date-time",
					Description: "结束时间，RFC 3339 格式且必须带时区",
				},
			},
			Required: []string{"room_id", "title", "start_time", "end_time"},
		},
	},
	{
		Name:        ToolList,
		Description: "列出会议室的全部预约，按创建顺序返回。",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"room_id": roomIDProperty,
			},
			Required: []string{"room_id"},
		},
	},
	{
		Name:        ToolGet,
		Description: "查询会议室的单个预约。",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"room_id":        roomIDProperty,
				"reservation_id": reservationIDProperty,
			},
			Required: []string{"room_id", "reservation_id"},
		},
	},
	{
		Name:        ToolCancel,
		Description: "取消会议室的预约。取消后该时间段可以重新预约。",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"room_id":        roomIDProperty,
				"reservation_id": reservationIDProperty,
			},
			Required: []string{"room_id", "reservation_id"},
		},
	},
}
