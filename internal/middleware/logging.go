// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogTransport is an http.RoundTripper that logs outgoing requests using Logrus.
// Logs the method, path, status, and duration of each request.
type LogTransport struct {
	Next   http.RoundTripper
	Logger *logrus.Entry
}

// RoundTrip implements http.RoundTripper.
func (t *LogTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}
	start := time.Now()
	resp, err := next.RoundTrip(r)

	fields := logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"duration": time.Since(start),
	}
	if err != nil {
		fields["error"] = err
		t.Logger.WithFields(fields).Warn("HTTP Request failed")
		return nil, err
	}
	fields["status"] = resp.StatusCode
	t.Logger.WithFields(fields).Info("HTTP Request")
	return resp, nil
}

// LogWebSocketConnect logs a message when the channel's transport opens.
func LogWebSocketConnect(logger *logrus.Entry, endpoint string) {
	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a message when the channel's transport closes.
// reason labels the close status; err may be nil for owner-initiated closes.
func LogWebSocketDisconnect(logger *logrus.Entry, endpoint string, reason string, err error) {
	fields := logrus.Fields{
		"endpoint": endpoint,
		"reason":   reason,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
