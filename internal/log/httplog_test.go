package log

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"ok", http.StatusOK, zapcore.InfoLevel},
		{"client error", http.StatusNotFound, zapcore.InfoLevel},
		{"server error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := HTTPMiddleware(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/geometry", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("logged %d entries, expected 1", len(entries))
			}
			e := entries[0]
			if e.Level != tt.level {
				t.Errorf("level = %v, expected %v", e.Level, tt.level)
			}
			fields := e.ContextMap()
			if fields["path"] != "/api/geometry" {
				t.Errorf("path = %v", fields["path"])
			}
			if fields["status"] != int64(tt.status) {
				t.Errorf("status = %v (%T), expected %d", fields["status"], fields["status"], tt.status)
			}
			if fields["size"] != int64(4) {
				t.Errorf("size = %v", fields["size"])
			}
		})
	}
}
