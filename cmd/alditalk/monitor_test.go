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
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewgall/alditalk"
)

const (
	testUsername = "015712345678"
	testPassword = "geheim123"
	testAccount  = "0157***"
)

var testLocation = time.FixedZone("CET", 3600)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	return data
}

// stubFetcher serves a fixed body or error. When block is set every fetch
// waits for it to be closed.
type stubFetcher struct {
	mu    sync.Mutex
	body  []byte
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (f *stubFetcher) FetchDashboard(ctx context.Context) ([]byte, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, f.err
}

func (f *stubFetcher) set(body []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
	f.err = err
}

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []*alditalk.Snapshot
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, snapshot *alditalk.Snapshot, updated time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snapshot)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots)
}

func newTestMonitor(t *testing.T, fetcher alditalk.DashboardFetcher) *UsageMonitor {
	t.Helper()
	logger := alditalk.NewLoggerTo(io.Discard, true, false)
	cfg := alditalk.DefaultPortalConfig()
	cfg.Location = testLocation
	client := alditalk.NewAccountClient(fetcher, alditalk.NewFieldExtractor(cfg, logger), logger)
	return NewUsageMonitor(client, testUsername, logger)
}

func TestRefreshStoresSnapshot(t *testing.T) {
	fetcher := &stubFetcher{body: loadFixture(t, "dashboard.html")}
	monitor := newTestMonitor(t, fetcher)
	publisher := &recordingPublisher{}
	monitor.SetPublisher(publisher)

	snapshot, err := monitor.CheckOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot.AccountBalance)
	assert.Equal(t, "12.34", snapshot.AccountBalance.String())
	assert.Equal(t, 1, publisher.count())
	assert.False(t, monitor.client.LastUpdated().IsZero())
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	fetcher := &stubFetcher{body: loadFixture(t, "dashboard.html")}
	monitor := newTestMonitor(t, fetcher)
	publisher := &recordingPublisher{}
	monitor.SetPublisher(publisher)

	first, err := monitor.Refresh(context.Background())
	require.NoError(t, err)

	fetcher.set(nil, &alditalk.TransportError{Method: "GET", URL: alditalk.DashboardURL, StatusCode: 503})
	second, err := monitor.Refresh(context.Background())
	require.Error(t, err)

	var transportErr *alditalk.TransportError
	assert.True(t, errors.As(err, &transportErr))
	assert.Same(t, first, second)
	assert.Equal(t, 1, publisher.count(), "failed updates are not published")
}

func TestRefreshPublishErrorIsNotFatal(t *testing.T) {
	fetcher := &stubFetcher{body: loadFixture(t, "dashboard.html")}
	monitor := newTestMonitor(t, fetcher)
	monitor.SetPublisher(&recordingPublisher{err: errors.New("redis down")})

	_, err := monitor.Refresh(context.Background())
	assert.NoError(t, err)
}

func TestRefreshCoalescesConcurrentCalls(t *testing.T) {
	fetcher := &stubFetcher{body: loadFixture(t, "dashboard.html"), block: make(chan struct{})}
	monitor := newTestMonitor(t, fetcher)

	var wg sync.WaitGroup
	results := make([]*alditalk.Snapshot, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot, err := monitor.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = snapshot
		}(i)
		if i == 0 {
			require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
		}
	}

	// give the second caller time to join the in-flight update
	time.Sleep(50 * time.Millisecond)
	close(fetcher.block)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Same(t, results[0], results[1])
}

func TestRefreshCallerCanGiveUp(t *testing.T) {
	fetcher := &stubFetcher{body: loadFixture(t, "dashboard.html"), block: make(chan struct{})}
	defer close(fetcher.block)
	monitor := newTestMonitor(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for fetcher.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	snapshot, err := monitor.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, snapshot)
	assert.Nil(t, snapshot.AccountBalance, "cached snapshot is still the empty one")
}

func TestStartRefreshesUntilStopped(t *testing.T) {
	fetcher := &stubFetcher{body: loadFixture(t, "dashboard.html")}
	monitor := newTestMonitor(t, fetcher)
	monitor.SetCheckInterval(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- monitor.Start(context.Background()) }()

	require.Eventually(t, func() bool { return fetcher.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	monitor.Stop()
	monitor.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	fetcher := &stubFetcher{body: loadFixture(t, "dashboard.html")}
	monitor := newTestMonitor(t, fetcher)
	monitor.SetCheckInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Start(ctx) }()

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestSetCheckIntervalIgnoresZero(t *testing.T) {
	monitor := newTestMonitor(t, &stubFetcher{})
	monitor.SetCheckInterval(0)
	assert.Equal(t, DefaultCheckInterval, monitor.checkInterval)
}
