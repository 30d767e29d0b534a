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
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matthewgall/alditalk"
)

// SnapshotPublisher hands each stored snapshot to other consumers
type SnapshotPublisher interface {
	Publish(ctx context.Context, snapshot *alditalk.Snapshot, updated time.Time) error
	Close() error
}

// RedisPublisher stores the latest snapshot under a per-account key and
// announces it on a channel
type RedisPublisher struct {
	client  *redis.Client
	key     string
	channel string
	ttl     time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisPublisher connects to redis and checks the connection
func NewRedisPublisher(ctx context.Context, opts RedisOptions, account string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: RedisConnectTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, RedisConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return newRedisPublisher(client, account), nil
}

func newRedisPublisher(client *redis.Client, account string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		key:     RedisKeyPrefix + account,
		channel: RedisChannel,
		ttl:     RedisSnapshotTTL,
	}
}

// Publish writes the snapshot payload with SET and then PUBLISHes it
func (p *RedisPublisher) Publish(ctx context.Context, snapshot *alditalk.Snapshot, updated time.Time) error {
	data, err := json.Marshal(snapshotPayload(snapshot, updated))
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot in redis: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// snapshotPayload is the JSON shape shared by the API and the publisher
func snapshotPayload(snapshot *alditalk.Snapshot, updated time.Time) map[string]any {
	payload := snapshot.JSONMap()

	var lastUpdated any
	if !updated.IsZero() {
		lastUpdated = updated.Format(time.RFC3339)
	}
	payload["last_updated"] = lastUpdated

	gaps := make([]string, 0)
	if snapshot != nil {
		for _, field := range snapshot.Gaps {
			gaps = append(gaps, string(field))
		}
	}
	payload["gaps"] = gaps
	return payload
}
