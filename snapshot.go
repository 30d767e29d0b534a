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
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Field names one value of a snapshot. The string is the output key.
type Field string

const (
	FieldAccountBalance      Field = "account_balance"
	FieldRemainingDataVolume Field = "remaining_data_volume"
	FieldTotalDataVolume     Field = "total_data_volume"
	FieldStartDate           Field = "start_date"
	FieldEndDate             Field = "end_date"
)

// Fields lists every snapshot field in output order
var Fields = []Field{
	FieldAccountBalance,
	FieldRemainingDataVolume,
	FieldTotalDataVolume,
	FieldStartDate,
	FieldEndDate,
}

// Snapshot is the result of one update. A nil field means the value is
// unknown. Snapshots are never modified after they are stored.
type Snapshot struct {
	AccountBalance      *decimal.Decimal // euros
	RemainingDataVolume *decimal.Decimal // megabytes
	TotalDataVolume     *decimal.Decimal // megabytes
	EndDate             *time.Time

	// Gaps lists the fields that could not be extracted
	Gaps []Field

	cycleLength time.Duration
}

// StartDate is derived from EndDate, it is never read from the page
func (s *Snapshot) StartDate() *time.Time {
	if s == nil || s.EndDate == nil {
		return nil
	}
	length := s.cycleLength
	if length <= 0 {
		length = BillingCycleLength
	}
	start := startOfCycle(*s.EndDate, length)
	return &start
}

// HasGap reports whether field was missing in this snapshot
func (s *Snapshot) HasGap(field Field) bool {
	if s == nil {
		return false
	}
	for _, gap := range s.Gaps {
		if gap == field {
			return true
		}
	}
	return false
}

// AsMap returns the snapshot keyed by output name. Absent values are nil,
// present ones are decimal.Decimal or time.Time.
func (s *Snapshot) AsMap() map[string]any {
	out := make(map[string]any, len(Fields))
	for _, field := range Fields {
		out[string(field)] = nil
	}
	if s == nil {
		return out
	}
	if s.AccountBalance != nil {
		out[string(FieldAccountBalance)] = *s.AccountBalance
	}
	if s.RemainingDataVolume != nil {
		out[string(FieldRemainingDataVolume)] = *s.RemainingDataVolume
	}
	if s.TotalDataVolume != nil {
		out[string(FieldTotalDataVolume)] = *s.TotalDataVolume
	}
	if start := s.StartDate(); start != nil {
		out[string(FieldStartDate)] = *start
	}
	if s.EndDate != nil {
		out[string(FieldEndDate)] = *s.EndDate
	}
	return out
}

// JSONMap is AsMap with JSON ready values: numbers as json.Number, dates
// as RFC 3339 strings and absent values as nil
func (s *Snapshot) JSONMap() map[string]any {
	out := s.AsMap()
	for key, value := range out {
		switch v := value.(type) {
		case decimal.Decimal:
			out[key] = json.Number(v.String())
		case time.Time:
			out[key] = v.Format(time.RFC3339)
		}
	}
	return out
}

// MarshalJSON writes the output shape of the snapshot
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.JSONMap())
}
