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
	"fmt"
)

// ErrInvalidCredentials is matched by every InvalidCredentialsError
var ErrInvalidCredentials = errors.New("invalid username or password")

// InvalidCredentialsError is returned by the login step when the portal
// rejects the number/password combination
type InvalidCredentialsError struct {
	Username string // Already masked
	Endpoint string
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("login rejected at %s for %s: %v", e.Endpoint, e.Username, ErrInvalidCredentials)
}

func (e *InvalidCredentialsError) Unwrap() error {
	return ErrInvalidCredentials
}

// TransportError represents a failed exchange with the portal: network,
// TLS, timeout, body read or an HTTP error status
type TransportError struct {
	Method     string
	URL        string
	StatusCode int   // 0 when no response was received
	Err        error // Underlying error if any
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("portal request %s %s failed with status %d", e.Method, e.URL, e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("portal request %s %s failed with status %d (caused by: %v)", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("portal request %s %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GapReason says which step of a field extraction failed
type GapReason string

const (
	// GapAnchor - the structural anchor for the field was not found
	GapAnchor GapReason = "anchor"
	// GapParse - the anchor was found but its text did not parse
	GapParse GapReason = "parse"
)

// ExtractionGap describes why a single field could not be extracted. It is
// never returned from an update, only logged and recorded on the snapshot.
type ExtractionGap struct {
	Field  Field
	Reason GapReason
	Detail string
	Err    error
}

func (e *ExtractionGap) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction gap for %s (%s): %s: %v", e.Field, e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("extraction gap for %s (%s): %s", e.Field, e.Reason, e.Detail)
}

func (e *ExtractionGap) Unwrap() error {
	return e.Err
}

func anchorGap(field Field, detail string) *ExtractionGap {
	return &ExtractionGap{Field: field, Reason: GapAnchor, Detail: detail}
}

func parseGap(field Field, detail string, err error) *ExtractionGap {
	return &ExtractionGap{Field: field, Reason: GapParse, Detail: detail, Err: err}
}
