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

import "time"

// Daemon constants
const (
	DefaultCheckInterval = 15 * time.Minute
	DefaultWebPort       = 8080

	// RefreshTimeout bounds one update triggered by the ticker or the API
	RefreshTimeout = 2 * time.Minute

	WebReadHeaderTimeout = 10 * time.Second
	WebShutdownTimeout   = 5 * time.Second
)

// Redis hand-off
const (
	RedisKeyPrefix      = "alditalk:snapshot:"
	RedisChannel        = "alditalk:snapshots"
	RedisSnapshotTTL    = 24 * time.Hour
	RedisConnectTimeout = 5 * time.Second
)
