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
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// DashboardFetcher returns the markup of the authenticated dashboard
type DashboardFetcher interface {
	FetchDashboard(ctx context.Context) ([]byte, error)
}

// AccountClient produces snapshots of one account. Update is not safe for
// concurrent use; readers may call the accessors at any time.
type AccountClient struct {
	fetcher     DashboardFetcher
	extractor   *FieldExtractor
	logger      *Logger
	snapshot    atomic.Pointer[Snapshot]
	lastUpdated atomic.Pointer[time.Time]
}

// New creates a client for the live portal
func New(username, password string, logger *Logger, debug bool) (*AccountClient, error) {
	return NewWithConfig(Credentials{Username: username, Password: password}, DefaultPortalConfig(), logger, debug)
}

// NewWithConfig creates a client for a portal described by cfg. Zero fields
// of cfg take the production values.
func NewWithConfig(credentials Credentials, cfg PortalConfig, logger *Logger, debug bool) (*AccountClient, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = NewLogger(debug)
	}
	session, err := NewSession(credentials, cfg, logger, debug)
	if err != nil {
		return nil, err
	}
	return NewAccountClient(session, NewFieldExtractor(cfg, logger), logger), nil
}

// NewAccountClient wires a fetcher and an extractor together
func NewAccountClient(fetcher DashboardFetcher, extractor *FieldExtractor, logger *Logger) *AccountClient {
	if logger == nil {
		logger = NewLogger(false)
	}
	if extractor == nil {
		extractor = NewFieldExtractor(DefaultPortalConfig(), logger)
	}
	c := &AccountClient{
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger.WithComponent("account_client"),
	}
	c.snapshot.Store(&Snapshot{cycleLength: extractor.cycleLength})
	return c
}

// Update fetches the dashboard and replaces the cached snapshot. Session and
// transport errors abort the update and keep the previous snapshot; missing
// fields only show up as gaps.
func (c *AccountClient) Update(ctx context.Context) error {
	body, err := c.fetcher.FetchDashboard(ctx)
	if err != nil {
		return err
	}

	doc, err := ParseDashboard(body)
	if err != nil {
		return err
	}

	snapshot := c.extractor.Extract(doc)
	now := time.Now()
	c.snapshot.Store(snapshot)
	c.lastUpdated.Store(&now)

	c.logger.Debug("Snapshot updated", "gaps", len(snapshot.Gaps))
	return nil
}

// Snapshot optionally refreshes, then returns the cached snapshot. Before
// the first successful update every field is nil.
func (c *AccountClient) Snapshot(ctx context.Context, refresh bool) (*Snapshot, error) {
	if refresh {
		if err := c.Update(ctx); err != nil {
			return c.snapshot.Load(), err
		}
	}
	return c.snapshot.Load(), nil
}

// Current returns the cached snapshot without refreshing
func (c *AccountClient) Current() *Snapshot {
	return c.snapshot.Load()
}

// LastUpdated returns the time of the last successful update, zero if none
func (c *AccountClient) LastUpdated() time.Time {
	if t := c.lastUpdated.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

func (c *AccountClient) AccountBalance() *decimal.Decimal {
	return c.snapshot.Load().AccountBalance
}

func (c *AccountClient) RemainingDataVolume() *decimal.Decimal {
	return c.snapshot.Load().RemainingDataVolume
}

func (c *AccountClient) TotalDataVolume() *decimal.Decimal {
	return c.snapshot.Load().TotalDataVolume
}

func (c *AccountClient) EndDate() *time.Time {
	return c.snapshot.Load().EndDate
}

// StartDate is the end date minus the billing cycle length
func (c *AccountClient) StartDate() *time.Time {
	return c.snapshot.Load().StartDate()
}
