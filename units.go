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

import "github.com/shopspring/decimal"

// Unit labels rendered next to data volumes
const (
	UnitMegabytes = "MB"
	UnitGigabytes = "GB"
)

var megabytesPerGigabyte = decimal.NewFromInt(1000)

// NormalizeVolume converts a data volume to megabytes. Only GB is converted;
// every other label, including unknown ones, is passed through unchanged.
func NormalizeVolume(value decimal.Decimal, unit string) decimal.Decimal {
	if unit == UnitGigabytes {
		return value.Mul(megabytesPerGigabyte)
	}
	return value
}

// KnownUnit reports whether NormalizeVolume understands the label
func KnownUnit(unit string) bool {
	return unit == UnitMegabytes || unit == UnitGigabytes
}
