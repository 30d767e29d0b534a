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
	"fmt"
	"strings"
	"time"
)

// StartOfCycle returns the start of the billing cycle ending at end
func StartOfCycle(end time.Time) time.Time {
	return startOfCycle(end, BillingCycleLength)
}

func startOfCycle(end time.Time, length time.Duration) time.Time {
	return end.Add(-length)
}

// ParseEndDate parses the end-date panel text, e.g. "Mo, 15.03.2024 10:00 Uhr".
// The payload after the first comma must start with the date and time tokens.
func ParseEndDate(text string, loc *time.Location) (time.Time, error) {
	return parseEndDate(text, EndDateLayout, loc)
}

func parseEndDate(text, layout string, loc *time.Location) (time.Time, error) {
	segments := strings.Split(text, ",")
	if len(segments) < 2 {
		return time.Time{}, fmt.Errorf("no comma separated payload in %q", text)
	}

	tokens := strings.Fields(segments[1])
	if len(tokens) < 2 {
		return time.Time{}, fmt.Errorf("expected date and time in %q", segments[1])
	}

	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(layout, tokens[0]+" "+tokens[1], loc)
}
