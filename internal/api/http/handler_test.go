package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/reservation/internal/action"
	"github.com/Zereker/reservation/internal/domain"
	"github.com/Zereker/reservation/internal/storage"
)

var testNow = time.Date(2030, 1, 20, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, config ServerConfig) http.Handler {
	t.Helper()

	clock := domain.ClockFunc(func() time.Time { return testNow })
	reservations := action.NewReservations(storage.NewMemoryStore(clock), action.WithClock(clock))
	return NewServer(reservations, config).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func createBody(title, start, end string) string {
	return `{"title":"` + title + `","start_time":"` + start + `","end_time":"` + end + `"}`
}

func TestCreateReservation(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	rec := do(t, h, http.MethodPost, "/rooms/room-101/reservations",
		createBody("Planning Meeting", "2030-01-20T09:00:00+00:00", "2030-01-20T10:00:00+00:00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var res domain.Reservation
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, "room-101", res.RoomID)
	assert.Equal(t, "Planning Meeting", res.Title)
	assert.True(t, time.Date(2030, 1, 20, 9, 0, 0, 0, time.UTC).Equal(res.StartTime))
	assert.Equal(t, "/rooms/room-101/reservations/1", rec.Header().Get("Location"))
}

func TestCreateReservationPathWins(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	rec := do(t, h, http.MethodPost, "/rooms/room-101/reservations",
		`{"room_id":"room-999","title":"t","start_time":"2030-01-20T09:00:00Z","end_time":"2030-01-20T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var res domain.Reservation
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &res))
	assert.Equal(t, "room-101", res.RoomID)
}

func TestCreateReservationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{
			name:     "inverted interval",
			body:     createBody("t", "2030-01-20T10:00:00Z", "2030-01-20T09:00:00Z"),
			wantCode: http.StatusBadRequest,
			wantErr:  domain.CodeInvalidInterval,
		},
		{
			name:     "past start",
			body:     createBody("t", "2030-01-20T07:00:00Z", "2030-01-20T09:00:00Z"),
			wantCode: http.StatusBadRequest,
			wantErr:  domain.CodePastReservation,
		},
		{
			name:     "naive timestamp",
			body:     createBody("t", "2030-01-20T09:00:00", "2030-01-20T10:00:00"),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  domain.CodeMalformedRequest,
		},
		{
			name:     "missing field",
			body:     `{"title":"t","start_time":"2030-01-20T09:00:00Z"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  domain.CodeMalformedRequest,
		},
		{
			name:     "not json",
			body:     `title=t`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  domain.CodeMalformedRequest,
		},
		{
			name:     "json array",
			body:     `[]`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  domain.CodeMalformedRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, DefaultServerConfig())

			rec := do(t, h, http.MethodPost, "/rooms/room-101/reservations", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantErr, env.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestCreateReservationConflict(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	rec := do(t, h, http.MethodPost, "/rooms/room-101/reservations",
		createBody("first", "2030-01-20T09:00:00Z", "2030-01-20T10:00:00Z"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/rooms/room-101/reservations",
		createBody("second", "2030-01-20T09:30:00Z", "2030-01-20T10:30:00Z"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.CodeOverlapConflict, decodeEnvelope(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/rooms/room-101/reservations",
		createBody("adjacent", "2030-01-20T10:00:00Z", "2030-01-20T11:00:00Z"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateReservationBodyTooLarge(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	title := strings.Repeat("x", maxBodyBytes)
	rec := do(t, h, http.MethodPost, "/rooms/room-101/reservations",
		createBody(title, "2030-01-20T09:00:00Z", "2030-01-20T10:00:00Z"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, codePayloadTooLarge, env.Code)

	// nothing was stored
	rec = do(t, h, http.MethodGet, "/rooms/room-101/reservations", "")
	assert.JSONEq(t, "[]", string(decodeEnvelope(t, rec).Data))
}

func TestListReservations(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	rec := do(t, h, http.MethodGet, "/rooms/room-101/reservations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, rec).Data))

	do(t, h, http.MethodPost, "/rooms/room-101/reservations", createBody("late", "2030-01-20T15:00:00Z", "2030-01-20T16:00:00Z"))
	do(t, h, http.MethodPost, "/rooms/room-101/reservations", createBody("early", "2030-01-20T09:00:00Z", "2030-01-20T10:00:00Z"))
	do(t, h, http.MethodPost, "/rooms/room-202/reservations", createBody("other", "2030-01-20T09:00:00Z", "2030-01-20T10:00:00Z"))

	rec = do(t, h, http.MethodGet, "/rooms/room-101/reservations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []domain.Reservation
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "late", list[0].Title)
	assert.Equal(t, "early", list[1].Title)
}

func TestGetAndCancelReservation(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	rec := do(t, h, http.MethodPost, "/rooms/room-101/reservations",
		createBody("t", "2030-01-20T09:00:00Z", "2030-01-20T10:00:00Z"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/rooms/room-101/reservations/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/rooms/room-202/reservations/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/rooms/room-101/reservations/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodDelete, "/rooms/room-202/reservations/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/rooms/room-101/reservations/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/rooms/room-101/reservations/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeNotFound, decodeEnvelope(t, rec).Code)

	rec = do(t, h, http.MethodDelete, "/rooms/room-101/reservations/x1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	do(t, h, http.MethodPost, "/rooms/room-101/reservations", createBody("t", "2030-01-20T09:00:00Z", "2030-01-20T10:00:00Z"))

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, float64(1), data["rooms"])
	assert.Equal(t, float64(1), data["reservations"])
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func healthFrom(h http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimit(t *testing.T) {
	config := DefaultServerConfig()
	config.RateLimit = 1
	config.RateBurst = 2
	h := newTestServer(t, config)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeEnvelope(t, rec).Code)

	// another client has its own bucket
	assert.Equal(t, http.StatusOK, healthFrom(h, "10.0.0.7:5555", ""))
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	config := DefaultServerConfig()
	config.RateLimit = 1
	config.RateBurst = 1
	h := newTestServer(t, config)

	assert.Equal(t, http.StatusOK, healthFrom(h, "10.0.0.9:4000", "1.1.1.1"))
	// rotating the header must not buy a fresh bucket
	assert.Equal(t, http.StatusTooManyRequests, healthFrom(h, "10.0.0.9:4001", "2.2.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, healthFrom(h, "10.0.0.9:4002", "3.3.3.3, 4.4.4.4"))
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	config := DefaultServerConfig()
	config.RateLimit = 1
	config.RateBurst = 1
	config.TrustProxy = true
	h := newTestServer(t, config)

	const proxy = "10.0.0.1:8000"

	assert.Equal(t, http.StatusOK, healthFrom(h, proxy, "203.0.113.5"))
	assert.Equal(t, http.StatusOK, healthFrom(h, proxy, "203.0.113.6"))

	// a spoofed leading entry does not change the address the proxy appended
	assert.Equal(t, http.StatusTooManyRequests, healthFrom(h, proxy, "9.9.9.9, 203.0.113.5"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		forwarded  []string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "header ignored", remote: "192.0.2.1:1234", forwarded: []string{"198.51.100.1"}, want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "trusted single", remote: "10.0.0.1:80", forwarded: []string{"198.51.100.1"}, trustProxy: true, want: "198.51.100.1"},
		{name: "trusted rightmost", remote: "10.0.0.1:80", forwarded: []string{"1.2.3.4, 198.51.100.1"}, trustProxy: true, want: "198.51.100.1"},
		{name: "trusted repeated header", remote: "10.0.0.1:80", forwarded: []string{"1.2.3.4", "198.51.100.2"}, trustProxy: true, want: "198.51.100.2"},
		{name: "trusted without header", remote: "10.0.0.1:80", trustProxy: true, want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trustProxy))
		})
	}
}

func TestClientLimitersEvictIdle(t *testing.T) {
	limiters := newClientLimiters(10, 0)
	now := testNow
	limiters.now = func() time.Time { return now }

	limiters.get("10.0.0.1")
	limiters.get("10.0.0.2")
	assert.Equal(t, 2, limiters.size())

	now = now.Add(limiterIdleTTL + time.Second)
	limiters.get("10.0.0.3")
	assert.Equal(t, 1, limiters.size())
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, DefaultServerConfig())

	rec := do(t, h, http.MethodOptions, "/rooms/room-101/reservations", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
