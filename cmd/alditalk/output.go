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
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/matthewgall/alditalk"
)

const displayDateLayout = "02.01.2006 15:04"

var (
	labelColor   = color.New(color.Bold)
	valueColor   = color.New(color.FgGreen)
	unknownColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// PrintSnapshot writes a human readable summary of snapshot to w
func PrintSnapshot(w io.Writer, snapshot *alditalk.Snapshot, updated, now time.Time) {
	printLine(w, "Account balance", formatDecimal(snapshot.AccountBalance, "€"))
	printLine(w, "Remaining data volume", formatDecimal(snapshot.RemainingDataVolume, "MB"))
	printLine(w, "Total data volume", formatDecimal(snapshot.TotalDataVolume, "MB"))
	printLine(w, "Cycle start", formatDate(snapshot.StartDate(), time.Time{}))
	printLine(w, "Cycle end", formatDate(snapshot.EndDate, now))
	if !updated.IsZero() {
		printLine(w, "Last updated", updated.Format(displayDateLayout))
	}
	if len(snapshot.Gaps) > 0 {
		unknownColor.Fprintf(w, "Missing fields: %v\n", snapshot.Gaps)
	}
}

// PrintError writes a failed check to w
func PrintError(w io.Writer, message string) {
	errorColor.Fprintln(w, message)
}

// PrintSuccess writes a passed check to w
func PrintSuccess(w io.Writer, message string) {
	valueColor.Fprintln(w, message)
}

func printLine(w io.Writer, label, value string) {
	labelColor.Fprintf(w, "%-23s", label+":")
	fmt.Fprintln(w, value)
}

func formatDecimal(value *decimal.Decimal, unit string) string {
	if value == nil {
		return unknownColor.Sprint("unknown")
	}
	return valueColor.Sprintf("%s %s", value.String(), unit)
}

// formatDate prints t and, when now is set, how far away it is
func formatDate(t *time.Time, now time.Time) string {
	if t == nil {
		return unknownColor.Sprint("unknown")
	}
	out := valueColor.Sprint(t.Format(displayDateLayout))
	if !now.IsZero() {
		if d := t.Sub(now); d > 0 {
			out += fmt.Sprintf(" (%s)", formatDaysUntil(d))
		} else {
			out += " (ended)"
		}
	}
	return out
}

func formatTimeUntil(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 && minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh", hours)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	} else {
		return "less than a minute"
	}
}

func formatDaysUntil(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24

	if days > 1 {
		if hours > 0 {
			return fmt.Sprintf("in %d days %dh", days, hours)
		}
		return fmt.Sprintf("in %d days", days)
	} else if days == 1 {
		if hours > 0 {
			return fmt.Sprintf("tomorrow (%dh from now)", int(d.Hours()))
		}
		return "tomorrow"
	}
	return "in " + formatTimeUntil(d)
}
