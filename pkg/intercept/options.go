// Copyright 2026 fanjia1024
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

package intercept

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"callreplay/pkg/metrics"
)

const (
	engineRecord = "record"
	engineReplay = "replay"
)

// Option configures a Recorder or a Replayer.
type Option func(*options)

type options struct {
	logger             *slog.Logger
	faults             *FaultRegistry
	skipExitOnMismatch bool
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFaults sets the fault registry shared by recording and replaying runs.
func WithFaults(r *FaultRegistry) Option {
	return func(o *options) { o.faults = r }
}

// WithSkipExitOnMismatch makes the Replayer discard the paired exit record when
// an entry record fails validation. Off by default: the exit record then stays
// queued and is read as the next call's entry record.
func WithSkipExitOnMismatch(skip bool) Option {
	return func(o *options) { o.skipExitOnMismatch = skip }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.faults == nil {
		o.faults = NewFaultRegistry()
	}
	return o
}

// storeOps wraps store access with error wrapping and latency metrics.
type storeOps struct {
	store Store
}

func (s storeOps) recordSession(ctx context.Context) (string, error) {
	defer metrics.ObserveStore("session", time.Now())
	id, err := s.store.RecordSessionID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: record session: %w", ErrStore, err)
	}
	return id, nil
}

func (s storeOps) replaySession(ctx context.Context) (string, error) {
	defer metrics.ObserveStore("session", time.Now())
	id, err := s.store.ReplaySessionID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: replay session: %w", ErrStore, err)
	}
	return id, nil
}

func (s storeOps) append(ctx context.Context, sessionID string, lane int, e Entry) error {
	defer metrics.ObserveStore("append", time.Now())
	if err := s.store.Append(ctx, sessionID, lane, e); err != nil {
		return fmt.Errorf("%w: append %s.%s to lane %d: %w", ErrStore, e.ClassName, e.MethodName, lane, err)
	}
	return nil
}

func (s storeOps) fetch(ctx context.Context, sessionID string, lane int) (*Entry, error) {
	defer metrics.ObserveStore("fetch", time.Now())
	e, err := s.store.FetchNext(ctx, sessionID, lane)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch from lane %d: %w", ErrStore, lane, err)
	}
	return e, nil
}
