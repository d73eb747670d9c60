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

	"callreplay/pkg/metrics"
	"callreplay/pkg/tracing"
)

// Recorder captures the arguments and outcome of each invocation while a
// recording session is active. It never changes what the caller observes.
type Recorder struct {
	store  storeOps
	codec  Codec
	lanes  *LaneRegistry
	faults *FaultRegistry
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store, codec Codec, opts ...Option) *Recorder {
	o := buildOptions(opts)
	return &Recorder{
		store:  storeOps{store: store},
		codec:  codec,
		lanes:  NewLaneRegistry(),
		faults: o.faults,
		logger: o.logger,
	}
}

// Lanes exposes the recorder's lane registry.
func (r *Recorder) Lanes() *LaneRegistry {
	return r.lanes
}

// Intercept records inv as an entry record, runs it, and records its outcome
// as an exit record. Without an active session it only runs inv.
func (r *Recorder) Intercept(ctx context.Context, inv *Invocation) error {
	sessionID, err := r.store.recordSession(ctx)
	if err != nil {
		return err
	}
	if sessionID == "" {
		metrics.PassthroughTotal.WithLabelValues(engineRecord).Inc()
		inv.Proceed(ctx)
		return nil
	}

	ctx, span := tracing.StartInterceptSpan(ctx, engineRecord, inv.Target, inv.Method)
	defer span.End()
	lane := r.lanes.LaneOf(ExecutionID(ctx))
	tracing.MarkSession(span, sessionID, lane)

	params := make([]string, len(inv.Args))
	for i, arg := range inv.Args {
		s, err := r.codec.Serialize(arg)
		if err != nil {
			return fmt.Errorf("%w: serialize %s.%s argument %d: %w", ErrCodec, inv.Target, inv.Method, i, err)
		}
		params[i] = s
	}
	if err := r.store.append(ctx, sessionID, lane, NewEntryRecord(inv.Target, inv.Method, params)); err != nil {
		return err
	}
	r.logger.Debug("recorded call entry",
		"class", inv.Target, "method", inv.Method, "params", len(params), "lane", lane)

	inv.Proceed(ctx)

	exit, err := r.exitRecord(inv)
	if err != nil {
		return err
	}
	if err := r.store.append(ctx, sessionID, lane, exit); err != nil {
		return err
	}
	outcome := "value"
	if exit.Failed() {
		outcome = "fault"
	}
	metrics.RecordTotal.WithLabelValues(outcome).Inc()
	r.logger.Debug("recorded call exit",
		"class", inv.Target, "method", inv.Method, "outcome", outcome, "lane", lane)
	return nil
}

func (r *Recorder) exitRecord(inv *Invocation) (Entry, error) {
	if inv.Err != nil {
		kind, fault := r.faults.portable(inv.Err)
		s, err := r.codec.Serialize(fault)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: serialize %s.%s fault: %w", ErrCodec, inv.Target, inv.Method, err)
		}
		return NewExitRecord(inv.Target, inv.Method, s, kind), nil
	}
	s, err := r.codec.Serialize(inv.Result)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: serialize %s.%s result: %w", ErrCodec, inv.Target, inv.Method, err)
	}
	return NewExitRecord(inv.Target, inv.Method, s, ""), nil
}
