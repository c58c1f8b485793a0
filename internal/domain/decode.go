package domain

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// ParseTimestamp parses an RFC 3339 timestamp and normalizes it to UTC.
// Values without an explicit offset ("Z" or ±hh:mm) are rejected.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrMalformedTimestamp, "%q", s)
	}
	return t.UTC(), nil
}

// ReservationRef names a stored reservation.
type ReservationRef struct {
	RoomID string `json:"room_id"`
	ID     int64  `json:"reservation_id"`
}

// DecodeCreateRequest decodes a generic payload (HTTP body, tool arguments,
// command payload) into a CreateRequest. room_id, title, start_time and
// end_time are required; timestamps go through ParseTimestamp.
func DecodeCreateRequest(input map[string]any) (CreateRequest, error) {
	var req CreateRequest

	if err := requireKeys(input, "room_id", "title", "start_time", "end_time"); err != nil {
		return req, err
	}

	if err := decode(input, &req, false); err != nil {
		return req, err
	}

	if strings.TrimSpace(req.RoomID) == "" {
		return req, errors.WithMessage(ErrMalformedRequest, "room_id must not be empty")
	}

	return req, nil
}

// DecodeReservationRef decodes room_id and reservation_id. The id may be a
// JSON number or a numeric string.
func DecodeReservationRef(input map[string]any) (ReservationRef, error) {
	var ref ReservationRef

	if err := requireKeys(input, "room_id", "reservation_id"); err != nil {
		return ref, err
	}

	if err := decode(input, &ref, true); err != nil {
		return ref, err
	}

	return ref, nil
}

// DecodeRoomID extracts a required, non-empty room_id.
func DecodeRoomID(input map[string]any) (string, error) {
	var out struct {
		RoomID string `json:"room_id"`
	}

	if err := requireKeys(input, "room_id"); err != nil {
		return "", err
	}
	if err := decode(input, &out, false); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.RoomID) == "" {
		return "", errors.WithMessage(ErrMalformedRequest, "room_id must not be empty")
	}
	return out.RoomID, nil
}

func requireKeys(input map[string]any, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if v, ok := input[k]; !ok || v == nil {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return errors.WithMessagef(ErrMalformedRequest, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func decode(input map[string]any, out any, weak bool) error {
	config := &mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: weak,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(timestampHook, integralHook),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return errors.Wrap(err, "create decoder")
	}

	// mapstructure flattens hook errors into strings, so the sentinel is
	// reattached here.
	if err := decoder.Decode(input); err != nil {
		return errors.WithMessage(ErrMalformedRequest, err.Error())
	}
	return nil
}

// timestampHook 处理 string -> time.Time 转换，要求显式时区偏移
func timestampHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}

	switch v := data.(type) {
	case time.Time:
		if v.IsZero() {
			return data, fmt.Errorf("zero timestamp")
		}
		return v.UTC(), nil
	case string:
		return ParseTimestamp(v)
	default:
		return data, fmt.Errorf("timestamp must be a string, got %T", data)
	}
}

// integralHook 拒绝带小数部分的数字 id
func integralHook(_, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int64 {
		return data, nil
	}

	if f, ok := data.(float64); ok && f != math.Trunc(f) {
		return data, fmt.Errorf("expected an integer, got %v", f)
	}
	return data, nil
}
