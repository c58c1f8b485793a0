package consumer

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Zereker/reservation/internal/action"
	"github.com/Zereker/reservation/internal/domain"
)

// Command types
const (
	CommandCreate = "CreateReservation"
	CommandList   = "ListReservations"
	CommandGet    = "GetReservation"
	CommandCancel = "CancelReservation"
)

// Command 命令消息
type Command struct {
	Type          string         `json:"type"`
	ReplyTo       string         `json:"reply_to,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload"`
}

// Reply 命令处理结果
type Reply struct {
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Payload       any    `json:"payload,omitempty"`
}

var errUnknownCommand = errors.New("unknown command type")

// Dispatcher 将命令分发给预约服务
type Dispatcher struct {
	reservations *action.Reservations
}

// NewDispatcher creates a dispatcher over reservations.
func NewDispatcher(reservations *action.Reservations) *Dispatcher {
	return &Dispatcher{reservations: reservations}
}

// Dispatch executes cmd and always returns a reply.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Reply {
	reply := Reply{
		Type:          cmd.Type,
		CorrelationID: cmd.CorrelationID,
	}

	payload, err := d.execute(ctx, cmd)
	if err != nil {
		reply.Error = err.Error()
		reply.Code = domain.ErrorCode(err)
		if errors.Is(err, errUnknownCommand) {
			reply.Code = domain.CodeMalformedRequest
		}
		return reply
	}

	reply.OK = true
	reply.Payload = payload
	return reply
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) (any, error) {
	if cmd.Payload == nil {
		cmd.Payload = map[string]any{}
	}

	switch cmd.Type {
	case CommandCreate:
		req, err := domain.DecodeCreateRequest(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return d.reservations.Create(ctx, req)

	case CommandList:
		roomID, err := domain.DecodeRoomID(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return d.reservations.List(ctx, roomID), nil

	case CommandGet:
		ref, err := domain.DecodeReservationRef(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return d.reservations.Get(ctx, ref.RoomID, ref.ID)

	case CommandCancel:
		ref, err := domain.DecodeReservationRef(cmd.Payload)
		if err != nil {
			return nil, err
		}
		if err := d.reservations.Cancel(ctx, ref.RoomID, ref.ID); err != nil {
			return nil, err
		}
		return ref, nil

	default:
		return nil, errors.WithMessagef(errUnknownCommand, "%q", cmd.Type)
	}
}

// decodeCommand 解析命令消息，失败时返回 malformed_request
func decodeCommand(message []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		return cmd, errors.WithMessage(domain.ErrMalformedRequest, err.Error())
	}
	if cmd.Type == "" {
		return cmd, errors.WithMessage(domain.ErrMalformedRequest, "command type is required")
	}
	return cmd, nil
}
