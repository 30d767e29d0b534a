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


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewgall/alditalk"
)

type WebServer struct {
	monitor *UsageMonitor
	server  *http.Server
	router  chi.Router
}

func NewWebServer(monitor *UsageMonitor, port int) *WebServer {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	ws := &WebServer{
		monitor: monitor,
		router:  r,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: WebReadHeaderTimeout,
		},
	}

	r.Get("/healthz", ws.handleHealth)
	r.Get("/api/snapshot", ws.handleSnapshotAPI)
	r.Post("/api/refresh", ws.handleRefreshAPI)
	r.Method(http.MethodGet, "/metrics", monitor.Metrics().Handler())

	return ws
}

// Handler returns the router, mainly for tests
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

func (ws *WebServer) Start() error {
	ws.monitor.logger.Info("Starting web server", "addr", ws.server.Addr)
	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": alditalk.GetVersion(),
	})
}

func (ws *WebServer) handleSnapshotAPI(w http.ResponseWriter, r *http.Request) {
	client := ws.monitor.client
	writeJSON(w, http.StatusOK, snapshotPayload(client.Current(), client.LastUpdated()))
}

func (ws *WebServer) handleRefreshAPI(w http.ResponseWriter, r *http.Request) {
	snapshot, err := ws.monitor.Refresh(r.Context())
	if err != nil {
		status, code := refreshErrorStatus(err)
		writeJSON(w, status, map[string]any{
			"success": false,
			"error":   code,
			"message": err.Error(),
		})
		return
	}

	payload := snapshotPayload(snapshot, ws.monitor.client.LastUpdated())
	payload["success"] = true
	writeJSON(w, http.StatusOK, payload)
}

// refreshErrorStatus maps an update error to a status code and error key
func refreshErrorStatus(err error) (int, string) {
	var transportErr *alditalk.TransportError
	switch {
	case errors.Is(err, alditalk.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_auth"
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, "cannot_connect"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "unknown"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
