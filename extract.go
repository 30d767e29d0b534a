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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Structural anchors on the dashboard
const (
	selectorBalanceBox     = "div#ajaxReplaceQuickInfoBoxBalanceId"
	selectorPackUsageCell  = `td.pack__usage[colspan="2"]`
	selectorUsageRemaining = "span.pack__usage-remaining"
	selectorUsageUnit      = "span.pack__usage-unit"
	selectorOfTotal        = "span.oftotal"
	selectorUsageTotal     = "span.pack__usage-total"
	selectorEndDateRow     = "tr.t-row.pack__panel.pack__panel--end-date"
	selectorEndDateCell    = `td[colspan="2"]`
)

// Currency glyphs stripped from the balance. The second one is the euro sign
// after a UTF-8 page has been decoded as Windows-1252.
var currencyGlyphs = []string{"€", "â‚¬", "EUR"}

// ParseDashboard parses the dashboard markup once for all extractors
func ParseDashboard(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard markup: %w", err)
	}
	return doc, nil
}

// FieldExtractor pulls individual values out of a parsed dashboard. Every
// method either returns a value or an *ExtractionGap; none of them panics
// on unexpected markup.
type FieldExtractor struct {
	layout      string
	location    *time.Location
	cycleLength time.Duration
	logger      *Logger
}

// NewFieldExtractor creates an extractor for the given portal layout
func NewFieldExtractor(cfg PortalConfig, logger *Logger) *FieldExtractor {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = NewLogger(false)
	}
	return &FieldExtractor{
		layout:      cfg.EndDateLayout,
		location:    cfg.Location,
		cycleLength: cfg.CycleLength,
		logger:      logger.WithComponent("field_extractor"),
	}
}

// Extract runs every field extractor against doc and builds a snapshot.
// Gaps are logged and recorded, they never stop the remaining fields.
func (e *FieldExtractor) Extract(doc *goquery.Document) *Snapshot {
	snapshot := &Snapshot{cycleLength: e.cycleLength}

	if balance, err := e.AccountBalance(doc); err != nil {
		e.recordGap(snapshot, FieldAccountBalance, err)
	} else {
		snapshot.AccountBalance = &balance
	}

	if remaining, err := e.RemainingDataVolume(doc); err != nil {
		e.recordGap(snapshot, FieldRemainingDataVolume, err)
	} else {
		snapshot.RemainingDataVolume = &remaining
	}

	if total, err := e.TotalDataVolume(doc); err != nil {
		e.recordGap(snapshot, FieldTotalDataVolume, err)
	} else {
		snapshot.TotalDataVolume = &total
	}

	if end, err := e.EndDate(doc); err != nil {
		e.recordGap(snapshot, FieldEndDate, err)
		// The start date is derived from the end date and shares its fate
		snapshot.Gaps = append(snapshot.Gaps, FieldStartDate)
	} else {
		snapshot.EndDate = &end
	}

	return snapshot
}

func (e *FieldExtractor) recordGap(snapshot *Snapshot, field Field, err error) {
	snapshot.Gaps = append(snapshot.Gaps, field)

	var gap *ExtractionGap
	if !errors.As(err, &gap) {
		gap = parseGap(field, "unexpected error", err)
	}
	e.logger.LogExtractionGap(gap)
}

// AccountBalance reads the quick-info balance box, e.g. "12,34 €"
func (e *FieldExtractor) AccountBalance(doc *goquery.Document) (decimal.Decimal, error) {
	box := doc.Find(selectorBalanceBox).First()
	if box.Length() == 0 {
		return decimal.Zero, anchorGap(FieldAccountBalance, "balance box not found")
	}
	paragraph := box.Find("p").First()
	if paragraph.Length() == 0 {
		return decimal.Zero, anchorGap(FieldAccountBalance, "balance paragraph not found")
	}

	raw := strings.Join(strings.Fields(cleanText(paragraph.Text())), "")
	raw = strings.ReplaceAll(raw, ",", ".")
	for _, glyph := range currencyGlyphs {
		raw = strings.ReplaceAll(raw, glyph, "")
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, parseGap(FieldAccountBalance, fmt.Sprintf("balance text %q", raw), err)
	}
	return balance, nil
}

// RemainingDataVolume reads the remaining quota of the pack in megabytes
func (e *FieldExtractor) RemainingDataVolume(doc *goquery.Document) (decimal.Decimal, error) {
	cell := doc.Find(selectorPackUsageCell).First()
	if cell.Length() == 0 {
		return decimal.Zero, anchorGap(FieldRemainingDataVolume, "pack usage cell not found")
	}

	value := cell.Find(selectorUsageRemaining).First()
	if value.Length() == 0 {
		return decimal.Zero, anchorGap(FieldRemainingDataVolume, "remaining span not found")
	}
	// The total has its own unit span inside the of-total wrapper
	unit := cell.Find(selectorUsageUnit).Not(selectorOfTotal + " " + selectorUsageUnit).First()
	if unit.Length() == 0 {
		return decimal.Zero, anchorGap(FieldRemainingDataVolume, "unit span not found")
	}

	return e.volume(FieldRemainingDataVolume, value.Text(), unit.Text())
}

// TotalDataVolume reads the "of total" part of the pack usage in megabytes
func (e *FieldExtractor) TotalDataVolume(doc *goquery.Document) (decimal.Decimal, error) {
	cell := doc.Find(selectorPackUsageCell).First()
	if cell.Length() == 0 {
		return decimal.Zero, anchorGap(FieldTotalDataVolume, "pack usage cell not found")
	}
	ofTotal := cell.Find(selectorOfTotal).First()
	if ofTotal.Length() == 0 {
		return decimal.Zero, anchorGap(FieldTotalDataVolume, "of-total wrapper not found")
	}

	value := ofTotal.Find(selectorUsageTotal).First()
	if value.Length() == 0 {
		return decimal.Zero, anchorGap(FieldTotalDataVolume, "total span not found")
	}
	unit := ofTotal.Find(selectorUsageUnit).First()
	if unit.Length() == 0 {
		return decimal.Zero, anchorGap(FieldTotalDataVolume, "unit span not found")
	}

	return e.volume(FieldTotalDataVolume, value.Text(), unit.Text())
}

func (e *FieldExtractor) volume(field Field, valueText, unitText string) (decimal.Decimal, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(cleanText(valueText)), ",", ".")
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, parseGap(field, fmt.Sprintf("volume text %q", raw), err)
	}

	unit := strings.TrimSpace(cleanText(unitText))
	if !KnownUnit(unit) {
		e.logger.Warn("Unknown data volume unit, assuming megabytes",
			"field", string(field),
			"unit", unit,
		)
	}
	return NormalizeVolume(value, unit), nil
}

// EndDate reads the end of the billing cycle from the end-date panel
func (e *FieldExtractor) EndDate(doc *goquery.Document) (time.Time, error) {
	row := doc.Find(selectorEndDateRow).First()
	if row.Length() == 0 {
		return time.Time{}, anchorGap(FieldEndDate, "end date row not found")
	}
	cell := row.Find(selectorEndDateCell).First()
	if cell.Length() == 0 {
		return time.Time{}, anchorGap(FieldEndDate, "end date cell not found")
	}

	text := strings.TrimSpace(cleanText(cell.Text()))
	end, err := parseEndDate(text, e.layout, e.location)
	if err != nil {
		return time.Time{}, parseGap(FieldEndDate, fmt.Sprintf("end date text %q", text), err)
	}
	return end, nil
}

// StartDate derives the cycle start from an extracted end date
func (e *FieldExtractor) StartDate(end time.Time) time.Time {
	return startOfCycle(end, e.cycleLength)
}

// cleanText folds compatibility characters such as non-breaking spaces
func cleanText(s string) string {
	return norm.NFKC.String(s)
}
