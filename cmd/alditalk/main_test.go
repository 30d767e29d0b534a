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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewgall/alditalk"
)

// newPortalServer serves a minimal login form and dashboard
func newPortalServer(t *testing.T) *httptest.Server {
	t.Helper()
	dashboard := loadFixture(t, "dashboard.html")
	loginPage := loadFixture(t, "login_page.html")
	loginFailed := loadFixture(t, "login_failed.html")

	mux := http.NewServeMux()
	mux.HandleFunc("/sso/UI/Login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get(alditalk.FormFieldUsername) != testUsername || r.PostForm.Get(alditalk.FormFieldPassword) != testPassword {
			w.Write(loginFailed)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		w.Write(loginPage)
	})
	mux.HandleFunc("/de/", func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("session"); err != nil || cookie.Value != "ok" {
			w.Write(loginPage)
			return
		}
		w.Write(dashboard)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func executeCommand(t *testing.T, server *httptest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ALDITALK_LOGIN_URL", server.URL+"/sso/UI/Login")
	t.Setenv("ALDITALK_DASHBOARD_URL", server.URL+"/de/")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file=" + filepath.Join(t.TempDir(), "none.env")}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestCheckCommandAcceptsCredentials(t *testing.T) {
	server := newPortalServer(t)

	out, err := executeCommand(t, server, "check", "--username", testUsername, "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Credentials accepted for 0157***")
}

func TestCheckCommandRejectsCredentials(t *testing.T) {
	server := newPortalServer(t)

	out, err := executeCommand(t, server, "check", "--username", testUsername, "--password", "falsch")
	require.Error(t, err)
	assert.ErrorIs(t, err, alditalk.ErrInvalidCredentials)
	assert.Contains(t, out, "Invalid credentials")
	assert.NotContains(t, out, "falsch")
}

func TestCheckCommandRequiresCredentials(t *testing.T) {
	server := newPortalServer(t)
	t.Setenv("ALDITALK_USERNAME", "")
	t.Setenv("ALDITALK_PASSWORD", "")

	_, err := executeCommand(t, server, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username is required")
}

func TestOneShotJSON(t *testing.T) {
	server := newPortalServer(t)
	t.Setenv("ALDITALK_USERNAME", testUsername)
	t.Setenv("ALDITALK_PASSWORD", testPassword)

	out, err := executeCommand(t, server, "--json", "--timezone", "Europe/Berlin")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, 12.34, payload["account_balance"])
	assert.Equal(t, float64(500), payload["remaining_data_volume"])
	assert.Equal(t, float64(2000), payload["total_data_volume"])
	assert.Equal(t, "2024-03-15T10:00:00+01:00", payload["end_date"])
	assert.Equal(t, "2024-02-16T10:00:00+01:00", payload["start_date"])
	assert.Equal(t, []any{}, payload["gaps"])
}

func TestOneShotText(t *testing.T) {
	server := newPortalServer(t)

	out, err := executeCommand(t, server, "--username", testUsername, "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Account balance:       12.34 €")
	assert.Contains(t, out, "Total data volume:     2000 MB")
}

func TestWebRequiresDaemon(t *testing.T) {
	server := newPortalServer(t)

	_, err := executeCommand(t, server, "--username", testUsername, "--password", testPassword, "--web")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web UI requires daemon mode")
}

func TestVersionFlag(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "alditalk "+alditalk.GetVersion()))
	assert.Contains(t, out.String(), "User-Agent: "+alditalk.GetUserAgent())
}
