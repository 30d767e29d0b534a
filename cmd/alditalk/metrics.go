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
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/matthewgall/alditalk"
)

// Metrics exposes the latest snapshot and update outcomes in Prometheus
// format. Gauges of fields that are unknown are removed, not set to zero.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	balance    *prometheus.GaugeVec
	remaining  *prometheus.GaugeVec
	total      *prometheus.GaugeVec
	cycleStart *prometheus.GaugeVec
	cycleEnd   *prometheus.GaugeVec
	lastUpdate *prometheus.GaugeVec
	updates    *prometheus.CounterVec
	gaps       *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates a registry with all alditalk metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	account := []string{"account"}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alditalk_info",
		Help: "Build information",
	}, []string{"version", "user_agent"})
	up := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alditalk_up",
		Help: "Whether the application is up and running",
	})

	m := &Metrics{
		registry: registry,
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alditalk_account_balance_euros",
			Help: "Prepaid account balance in euros",
		}, account),
		remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alditalk_remaining_data_megabytes",
			Help: "Data volume left in the current billing cycle",
		}, account),
		total: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alditalk_total_data_megabytes",
			Help: "Data volume included in the current billing cycle",
		}, account),
		cycleStart: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alditalk_cycle_start_timestamp_seconds",
			Help: "Start of the billing cycle, the last reset of the remaining data volume",
		}, account),
		cycleEnd: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alditalk_cycle_end_timestamp_seconds",
			Help: "End of the billing cycle",
		}, account),
		lastUpdate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alditalk_last_update_timestamp_seconds",
			Help: "Unix timestamp of the last successful update",
		}, account),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alditalk_updates_total",
			Help: "Portal updates by result",
		}, []string{"account", "result"}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alditalk_extraction_gaps_total",
			Help: "Fields that could not be read from the dashboard",
		}, []string{"account", "field"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alditalk_update_duration_seconds",
			Help:    "Duration of portal updates",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(info, up, m.balance, m.remaining, m.total, m.cycleStart,
		m.cycleEnd, m.lastUpdate, m.updates, m.gaps, m.duration)
	info.WithLabelValues(alditalk.GetVersion(), alditalk.GetUserAgent()).Set(1)
	up.Set(1)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return m
}

// Handler serves the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpdate records the outcome of one update
func (m *Metrics) ObserveUpdate(account string, err error, duration time.Duration) {
	m.updates.WithLabelValues(account, updateResult(err)).Inc()
	m.duration.Observe(duration.Seconds())
}

// ObserveSnapshot publishes the values of a freshly stored snapshot
func (m *Metrics) ObserveSnapshot(account string, snapshot *alditalk.Snapshot, updated time.Time) {
	setDecimal(m.balance, account, snapshot.AccountBalance)
	setDecimal(m.remaining, account, snapshot.RemainingDataVolume)
	setDecimal(m.total, account, snapshot.TotalDataVolume)
	setTime(m.cycleEnd, account, snapshot.EndDate)
	setTime(m.cycleStart, account, snapshot.StartDate())
	setTime(m.lastUpdate, account, &updated)

	for _, field := range snapshot.Gaps {
		m.gaps.WithLabelValues(account, string(field)).Inc()
	}
}

func setDecimal(gauge *prometheus.GaugeVec, account string, value *decimal.Decimal) {
	if value == nil {
		gauge.DeleteLabelValues(account)
		return
	}
	gauge.WithLabelValues(account).Set(value.InexactFloat64())
}

func setTime(gauge *prometheus.GaugeVec, account string, value *time.Time) {
	if value == nil || value.IsZero() {
		gauge.DeleteLabelValues(account)
		return
	}
	gauge.WithLabelValues(account).Set(float64(value.Unix()))
}

func updateResult(err error) string {
	var transportErr *alditalk.TransportError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, alditalk.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.As(err, &transportErr):
		return "transport_error"
	default:
		return "error"
	}
}
