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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfCycle(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("CET", 3600),
		time.FixedZone("UTC-5", -5*3600),
	}

	for _, loc := range zones {
		t.Run(loc.String(), func(t *testing.T) {
			end := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)
			start := StartOfCycle(end)

			assert.Equal(t, 28*24*time.Hour, end.Sub(start))
			assert.Equal(t, loc, start.Location())

			_, endOffset := end.Zone()
			_, startOffset := start.Zone()
			assert.Equal(t, endOffset, startOffset)
			assert.True(t, time.Date(2024, 2, 16, 10, 0, 0, 0, loc).Equal(start))
		})
	}
}

func TestParseEndDate(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	tests := []struct {
		name    string
		text    string
		want    time.Time
		wantErr bool
	}{
		{
			name: "weekday prefix with suffix",
			text: "Mo, 15.03.2024 10:00 Uhr",
			want: time.Date(2024, 3, 15, 10, 0, 0, 0, loc),
		},
		{
			name: "extra whitespace",
			text: "Di,   02.01.2024    23:59   Uhr",
			want: time.Date(2024, 1, 2, 23, 59, 0, 0, loc),
		},
		{
			name: "no suffix",
			text: "Fr, 31.05.2024 00:00",
			want: time.Date(2024, 5, 31, 0, 0, 0, 0, loc),
		},
		{name: "no comma", text: "15.03.2024 10:00 Uhr", wantErr: true},
		{name: "missing time", text: "Mo, 15.03.2024", wantErr: true},
		{name: "english date order", text: "Mon, 2024-03-15 10:00", wantErr: true},
		{name: "empty", text: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndDate(tt.text, loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestParseEndDateDefaultsToLocal(t *testing.T) {
	got, err := ParseEndDate("Mo, 15.03.2024 10:00 Uhr", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, got.Location())
	assert.Equal(t, 10, got.Hour())
}
