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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

// AuthDetector decides from a dashboard body whether the session is logged in
type AuthDetector interface {
	LoggedIn(body []byte) bool
}

// MarkerDetector treats the presence of Marker as logged in
type MarkerDetector struct {
	Marker string
}

func (d MarkerDetector) LoggedIn(body []byte) bool {
	return bytes.Contains(body, []byte(d.Marker))
}

// Credentials for the portal login. They are only kept in memory.
type Credentials struct {
	Username string
	Password string
}

// Session owns the cookie jar and performs the portal login. The portal has
// no status endpoint, so the authenticated state is probed on every fetch.
type Session struct {
	credentials Credentials
	config      PortalConfig
	client      *http.Client
	detector    AuthDetector
	debug       bool
	logger      *Logger
}

// NewSession creates a session; no request is made until the first fetch
func NewSession(credentials Credentials, cfg PortalConfig, logger *Logger, debug bool) (*Session, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = NewLogger(debug)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Session{
		credentials: credentials,
		config:      cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		detector: MarkerDetector{Marker: cfg.LoggedInMarker},
		debug:    debug,
		logger:   logger.WithComponent("session").WithUsername(credentials.Username),
	}, nil
}

// SetAuthDetector replaces the logged-in heuristic
func (s *Session) SetAuthDetector(detector AuthDetector) {
	s.detector = detector
}

// IsAuthenticated requests the dashboard and looks for the logged-in marker.
// This performs a network call.
func (s *Session) IsAuthenticated(ctx context.Context) (bool, error) {
	s.logger.Debug("Checking login status")

	_, body, err := s.do(ctx, http.MethodGet, s.config.DashboardURL, nil)
	if err != nil {
		return false, err
	}

	loggedIn := s.detector.LoggedIn(body)
	s.logger.Debug("Login status", "logged_in", loggedIn)
	return loggedIn, nil
}

// Login posts the credentials to the SSO form. The portal gives no positive
// success signal, so anything without the failure marker counts as success.
func (s *Session) Login(ctx context.Context) error {
	s.logger.Debug("Attempting login")

	form := url.Values{}
	form.Set(FormFieldUsername, s.credentials.Username)
	form.Set(FormFieldPassword, s.credentials.Password)

	resp, body, err := s.do(ctx, http.MethodPost, s.config.LoginURL, form)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if bytes.Contains(body, []byte(s.config.LoginFailureMarker)) {
		err := &InvalidCredentialsError{
			Username: MaskUsername(s.credentials.Username),
			Endpoint: s.config.LoginURL,
		}
		s.logger.LogPortalError(err)
		return err
	}

	s.logger.Debug("Login response", "status_code", resp.StatusCode)
	return nil
}

// FetchDashboard returns the dashboard markup, logging in first when the
// probe says the session is not authenticated
func (s *Session) FetchDashboard(ctx context.Context) ([]byte, error) {
	s.logger.Debug("Fetching dashboard")

	loggedIn, err := s.IsAuthenticated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check login status: %w", err)
	}
	if !loggedIn {
		if err := s.Login(ctx); err != nil {
			return nil, err
		}
	}

	resp, body, err := s.do(ctx, http.MethodGet, s.config.DashboardURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		err := &TransportError{Method: http.MethodGet, URL: s.config.DashboardURL, StatusCode: resp.StatusCode}
		s.logger.LogPortalError(err)
		return nil, err
	}
	return body, nil
}

// do performs one request and returns the body decoded to UTF-8
func (s *Session) do(ctx context.Context, method, target string, form url.Values) (*http.Response, []byte, error) {
	var reqBody io.Reader
	var encoded string
	if form != nil {
		encoded = form.Encode()
		reqBody = strings.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", GetUserAgent())
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	s.debugLogRequest(method, target, req.Header, form)

	startTime := time.Now()
	resp, err := s.client.Do(req)
	duration := time.Since(startTime).Seconds()
	if err != nil {
		transportErr := &TransportError{Method: method, URL: target, Err: err}
		s.logger.LogPortalError(transportErr)
		return nil, nil, transportErr
	}
	defer resp.Body.Close()

	s.logger.LogPortalRequest(method, target, resp.StatusCode, duration)

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, &TransportError{Method: method, URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	s.debugLogResponse(resp, body, duration)
	return resp, body, nil
}

// debugLogRequest logs the request with the password masked
func (s *Session) debugLogRequest(method, target string, headers http.Header, form url.Values) {
	if !s.debug {
		return
	}

	flat := make(map[string]string)
	for key, values := range headers {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	s.logger.Debug("→ HTTP Request",
		"method", method,
		"url", target,
		"headers", flat,
	)

	if form != nil {
		masked := url.Values{}
		for key, values := range form {
			if key == FormFieldPassword {
				masked.Set(key, "***")
				continue
			}
			if key == FormFieldUsername && len(values) > 0 {
				masked.Set(key, MaskUsername(values[0]))
				continue
			}
			masked[key] = values
		}
		s.logger.Debug("  Request Body", "body", masked.Encode())
	}
}

// debugLogResponse logs a truncated preview of the response body
func (s *Session) debugLogResponse(resp *http.Response, body []byte, duration float64) {
	if !s.debug {
		return
	}

	s.logger.Debug("← HTTP Response",
		"status", resp.StatusCode,
		"status_text", resp.Status,
		"duration_ms", duration*1000,
		"content_type", resp.Header.Get("Content-Type"),
	)

	if len(body) > 0 {
		preview := string(body)
		if len(preview) > DebugBodyPreviewLimit {
			preview = preview[:DebugBodyPreviewLimit] + "... (truncated)"
		}
		s.logger.Debug("  Response Body", "body", preview)
	}
}
