package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceIDPrefersHeaderOverQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?device_id=query-device", nil)
	req.Header.Set("X-Device-Id", "header-device")

	assert.Equal(t, "header-device", DeviceIDFromRequest(req))
}

func TestDeviceIDFallsBackToQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?device_id=browser-tab", nil)
	assert.Equal(t, "browser-tab", DeviceIDFromRequest(req))
}

func TestRequestIDFallsBackToQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?request_id=req-9", nil)
	assert.Equal(t, "req-9", RequestIDFromRequest(req))
}

func TestIPUsesFirstForwardedHop(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")

	assert.Equal(t, "203.0.113.7", IPFromRequest(req))
}

func TestIPFallsBackToPeerAddress(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = "192.0.2.4:51234"

	assert.Equal(t, "192.0.2.4", IPFromRequest(req))
}
