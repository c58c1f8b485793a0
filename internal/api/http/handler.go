package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Zereker/reservation/internal/action"
	"github.com/Zereker/reservation/internal/domain"
	"github.com/Zereker/reservation/pkg/log"
)

// maxBodyBytes 限制创建请求的 body 大小
const maxBodyBytes = 8 << 10

const codePayloadTooLarge = "payload_too_large"

// Handler handles HTTP API requests
type Handler struct {
	logger       *slog.Logger
	reservations *action.Reservations
}

// NewHandler creates a new HTTP handler
func NewHandler(reservations *action.Reservations) *Handler {
	return &Handler{
		logger:       log.Logger("http.handler"),
		reservations: reservations,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Reservation operations
	mux.HandleFunc("POST /rooms/{room_id}/reservations", h.Create)
	mux.HandleFunc("GET /rooms/{room_id}/reservations", h.List)
	mux.HandleFunc("GET /rooms/{room_id}/reservations/{reservation_id}", h.Get)
	mux.HandleFunc("DELETE /rooms/{room_id}/reservations/{reservation_id}", h.Cancel)

	// Health check
	mux.HandleFunc("GET /health", h.Health)
}

// Create handles POST /rooms/{room_id}/reservations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, Response{
				Success: false,
				Error:   fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Code:    codePayloadTooLarge,
			})
			return
		}
		h.writeError(w, errors.WithMessage(domain.ErrMalformedRequest, "request body must be a JSON object"))
		return
	}

	// the path wins over any room_id in the body
	body["room_id"] = r.PathValue("room_id")

	req, err := domain.DecodeCreateRequest(body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.reservations.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Location", "/rooms/"+res.RoomID+"/reservations/"+strconv.FormatInt(res.ID, 10))
	h.writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data:    res,
	})
}

// List handles GET /rooms/{room_id}/reservations
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list := h.reservations.List(r.Context(), r.PathValue("room_id"))

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    list,
	})
}

// Get handles GET /rooms/{room_id}/reservations/{reservation_id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := reservationID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.reservations.Get(r.Context(), r.PathValue("room_id"), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    res,
	})
}

// Cancel handles DELETE /rooms/{room_id}/reservations/{reservation_id}
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := reservationID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.reservations.Cancel(r.Context(), r.PathValue("room_id"), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.reservations.Stats()

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"status":       "ok",
			"rooms":        stats.Rooms,
			"reservations": stats.Reservations,
		},
	})
}

func reservationID(r *http.Request) (int64, error) {
	raw := r.PathValue("reservation_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.WithMessagef(domain.ErrMalformedRequest, "reservation id %q is not an integer", raw)
	}
	return id, nil
}

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch domain.ErrorCode(err) {
	case domain.CodeInvalidInterval, domain.CodePastReservation:
		return http.StatusBadRequest
	case domain.CodeOverlapConflict:
		return http.StatusConflict
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeMalformedRequest:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}

	h.writeJSON(w, status, Response{
		Success: false,
		Error:   err.Error(),
		Code:    domain.ErrorCode(err),
	})
}
