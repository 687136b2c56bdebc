package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

const dashboardOrigin = "https://dashboard.example.com"

func TestCORSPreflightAllowedOrigin(t *testing.T) {
	nextCalled := false
	handler := CORS(CORSConfig{AllowedOrigins: []string{dashboardOrigin + "/"}})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusTeapot)
		}))

	request := httptest.NewRequest(http.MethodOptions, "/v1/chat/filtered", nil)
	request.Header.Set("Origin", "https://Dashboard.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "authorization,content-type,idempotency-key")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.False(t, nextCalled)
	assert.Equal(t, "https://Dashboard.example.com", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
	assert.Equal(t, "600", recorder.Header().Get("Access-Control-Max-Age"))
}

func TestCORSExposesCorrelationHeaders(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{dashboardOrigin}})(okHandler())

	request := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	request.Header.Set("Origin", dashboardOrigin)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, dashboardOrigin, recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-Id, Retry-After", recorder.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORSWildcardOrigin(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"*"}})(okHandler())

	request := httptest.NewRequest(http.MethodGet, "/v1/threads/t1", nil)
	request.Header.Set("Origin", "https://anything.example")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSIgnoresDisallowedOrigin(t *testing.T) {
	nextCalled := false
	handler := CORS(CORSConfig{AllowedOrigins: []string{dashboardOrigin}})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		}))

	request := httptest.NewRequest(http.MethodOptions, "/v1/chat", nil)
	request.Header.Set("Origin", "https://evil.example")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, nextCalled)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}
