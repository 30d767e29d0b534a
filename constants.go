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

import "time"

// Portal endpoints
const (
	// LoginURL - Single sign-on login form target
	LoginURL = "https://login.alditalk-kundenbetreuung.de/sso/UI/Login"

	// DashboardURL - Account overview page holding every extractable field
	DashboardURL = "https://www.alditalk-kundenbetreuung.de/de/"
)

// Markers used to infer session state from page content
const (
	// LoginFailureMarker - Present in the login response when the number or password is wrong
	LoginFailureMarker = "Rufnummer und/oder Passwort falsch."

	// LoggedInMarker - Navigation menu only rendered for authenticated visitors
	LoggedInMarker = `<ul class="nav-items level-0">`
)

// Login form field names
const (
	FormFieldUsername = "IDToken1"
	FormFieldPassword = "IDToken2"
)

// Billing cycle settings
const (
	// EndDateLayout - Layout of the date/time payload in the end-date panel (day.month.year hour:minute)
	EndDateLayout = "02.01.2006 15:04"

	// BillingCycleLength - The portal does not publish the cycle start, it is always 28 days before the end
	BillingCycleLength = 28 * 24 * time.Hour
)

// HTTP client settings
const (
	// HTTPClientTimeout - Maximum time for a single portal request
	HTTPClientTimeout = 30 * time.Second

	// DebugBodyPreviewLimit - Bodies longer than this are truncated in debug logs
	DebugBodyPreviewLimit = 500
)

// PortalConfig holds everything that is specific to the portal's current
// markup and endpoints. DefaultPortalConfig returns the production values.
type PortalConfig struct {
	LoginURL           string
	DashboardURL       string
	LoginFailureMarker string
	LoggedInMarker     string
	EndDateLayout      string
	CycleLength        time.Duration
	Location           *time.Location
	Timeout            time.Duration
}

// DefaultPortalConfig returns the configuration for the live portal
func DefaultPortalConfig() PortalConfig {
	return PortalConfig{
		LoginURL:           LoginURL,
		DashboardURL:       DashboardURL,
		LoginFailureMarker: LoginFailureMarker,
		LoggedInMarker:     LoggedInMarker,
		EndDateLayout:      EndDateLayout,
		CycleLength:        BillingCycleLength,
		Location:           time.Local,
		Timeout:            HTTPClientTimeout,
	}
}

// withDefaults fills zero fields from DefaultPortalConfig
func (c PortalConfig) withDefaults() PortalConfig {
	d := DefaultPortalConfig()
	if c.LoginURL == "" {
		c.LoginURL = d.LoginURL
	}
	if c.DashboardURL == "" {
		c.DashboardURL = d.DashboardURL
	}
	if c.LoginFailureMarker == "" {
		c.LoginFailureMarker = d.LoginFailureMarker
	}
	if c.LoggedInMarker == "" {
		c.LoggedInMarker = d.LoggedInMarker
	}
	if c.EndDateLayout == "" {
		c.EndDateLayout = d.EndDateLayout
	}
	if c.CycleLength <= 0 {
		c.CycleLength = d.CycleLength
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
