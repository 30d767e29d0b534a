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
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matthewgall/alditalk"
)

// UsageMonitor refreshes one account on a fixed interval. Refreshes from the
// ticker and the web API are coalesced so only one update runs at a time.
type UsageMonitor struct {
	client        *alditalk.AccountClient
	account       string
	logger        *alditalk.Logger
	checkInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	webServer     *WebServer
	metrics       *Metrics
	publisher     SnapshotPublisher
	refreshGroup  singleflight.Group
	now           func() time.Time
}

func NewUsageMonitor(client *alditalk.AccountClient, username string, logger *alditalk.Logger) *UsageMonitor {
	if logger == nil {
		logger = alditalk.NewLogger(false)
	}
	account := alditalk.MaskUsername(username)
	return &UsageMonitor{
		client:        client,
		account:       account,
		logger:        logger.WithComponent("monitor").WithUsername(username),
		checkInterval: DefaultCheckInterval,
		stopCh:        make(chan struct{}),
		metrics:       NewMetrics(),
		now:           time.Now,
	}
}

func (m *UsageMonitor) SetCheckInterval(interval time.Duration) {
	if interval > 0 {
		m.checkInterval = interval
	}
}

func (m *UsageMonitor) SetPublisher(publisher SnapshotPublisher) {
	m.publisher = publisher
}

func (m *UsageMonitor) EnableWebUI(port int) {
	m.webServer = NewWebServer(m, port)
}

// Metrics returns the collector fed by every refresh
func (m *UsageMonitor) Metrics() *Metrics {
	return m.metrics
}

// Start runs the refresh loop until ctx is done or Stop is called
func (m *UsageMonitor) Start(ctx context.Context) error {
	m.logger.Info("Starting usage monitoring", "interval", m.checkInterval.String())

	if m.webServer != nil {
		go func() {
			if err := m.webServer.Start(); err != nil {
				m.logger.Error("Web server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), WebShutdownTimeout)
			defer cancel()
			if err := m.webServer.Shutdown(shutdownCtx); err != nil {
				m.logger.Warn("Web server shutdown failed", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.refreshInBackground(ctx)

	for {
		select {
		case <-ticker.C:
			m.refreshInBackground(ctx)
		case <-m.stopCh:
			m.logger.Info("Stopping usage monitoring")
			return nil
		case <-ctx.Done():
			m.logger.Info("Stopping usage monitoring", "reason", ctx.Err().Error())
			return nil
		}
	}
}

func (m *UsageMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// CheckOnce runs a single update and returns the resulting snapshot
func (m *UsageMonitor) CheckOnce(ctx context.Context) (*alditalk.Snapshot, error) {
	return m.Refresh(ctx)
}

// refreshInBackground runs a ticker refresh; failures are logged by update
// and the previous snapshot stays in place
func (m *UsageMonitor) refreshInBackground(ctx context.Context) {
	_, _ = m.Refresh(ctx)
}

// Refresh updates the snapshot now. Concurrent callers share one update.
// The shared update is not canceled when one caller gives up; it is bounded
// by RefreshTimeout instead.
func (m *UsageMonitor) Refresh(ctx context.Context) (*alditalk.Snapshot, error) {
	resultCh := m.refreshGroup.DoChan("update", func() (any, error) {
		updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return m.update(updateCtx)
	})

	select {
	case <-ctx.Done():
		return m.client.Current(), ctx.Err()
	case res := <-resultCh:
		snapshot, _ := res.Val.(*alditalk.Snapshot)
		return snapshot, res.Err
	}
}

func (m *UsageMonitor) update(ctx context.Context) (*alditalk.Snapshot, error) {
	m.logger.Info("Checking account usage...")

	start := m.now()
	snapshot, err := m.client.Snapshot(ctx, true)
	m.metrics.ObserveUpdate(m.account, err, m.now().Sub(start))
	if err != nil {
		m.logger.LogPortalError(err)
		return snapshot, err
	}

	updated := m.client.LastUpdated()
	m.metrics.ObserveSnapshot(m.account, snapshot, updated)
	m.logSnapshot(snapshot)

	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, snapshot, updated); err != nil {
			m.logger.Warn("Failed to publish snapshot", "error", err)
		}
	}
	return snapshot, nil
}

func (m *UsageMonitor) logSnapshot(snapshot *alditalk.Snapshot) {
	attrs := []any{"gaps", len(snapshot.Gaps)}
	if snapshot.AccountBalance != nil {
		attrs = append(attrs, "balance_eur", snapshot.AccountBalance.String())
	}
	if snapshot.RemainingDataVolume != nil {
		attrs = append(attrs, "remaining_mb", snapshot.RemainingDataVolume.String())
	}
	if snapshot.TotalDataVolume != nil {
		attrs = append(attrs, "total_mb", snapshot.TotalDataVolume.String())
	}
	if snapshot.EndDate != nil {
		attrs = append(attrs, "cycle_ends", formatDaysUntil(snapshot.EndDate.Sub(m.now())))
	}
	m.logger.Info("Account usage updated", attrs...)
}
