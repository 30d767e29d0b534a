// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package alditalk

import (
	"errors"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger for structured logging throughout the application
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new structured logger
func NewLogger(debug bool) *Logger {
	return NewLoggerTo(os.Stdout, debug, false)
}

// NewJSONLogger creates a new JSON structured logger (useful for production/log aggregation)
func NewJSONLogger(debug bool) *Logger {
	return NewLoggerTo(os.Stdout, debug, true)
}

// NewLoggerTo creates a logger writing to w
func NewLoggerTo(w io.Writer, debug, json bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithComponent returns a logger with a component field pre-set
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}

// WithUsername returns a logger with a masked username field pre-set
func (l *Logger) WithUsername(username string) *Logger {
	return &Logger{
		Logger: l.Logger.With("username", MaskUsername(username)),
	}
}

// MaskUsername keeps the first four characters of a phone number or login
func MaskUsername(username string) string {
	if len(username) > 4 {
		return username[:4] + "***"
	}
	return "***"
}

// LogPortalRequest logs a portal request with common fields
func (l *Logger) LogPortalRequest(method, url string, statusCode int, duration float64) {
	l.Info("Portal request",
		"method", method,
		"url", url,
		"status_code", statusCode,
		"duration_ms", duration*1000,
	)
}

// LogPortalError logs a failed portal exchange with details
func (l *Logger) LogPortalError(err error) {
	var transportErr *TransportError
	var credErr *InvalidCredentialsError
	switch {
	case errors.As(err, &credErr):
		l.Error("Login failed: invalid username or password",
			"endpoint", credErr.Endpoint,
		)
	case errors.As(err, &transportErr):
		l.Error("Portal request failed",
			"method", transportErr.Method,
			"url", transportErr.URL,
			"status_code", transportErr.StatusCode,
			"error", err.Error(),
		)
	default:
		l.Error("Portal request failed", "error", err.Error())
	}
}

// LogExtractionGap logs a field that could not be extracted
func (l *Logger) LogExtractionGap(gap *ExtractionGap) {
	args := []any{
		"field", string(gap.Field),
		"reason", string(gap.Reason),
		"detail", gap.Detail,
	}
	if gap.Err != nil {
		args = append(args, "error", gap.Err.Error())
	}
	l.Warn("Failed to extract field", args...)
}
