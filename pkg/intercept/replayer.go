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

	"go.opentelemetry.io/otel/trace"

	"callreplay/pkg/metrics"
	"callreplay/pkg/tracing"
)

// MismatchKind names why a recorded entry could not be applied to a live call.
type MismatchKind string

const (
	MismatchMissing        MismatchKind = "missing"
	MismatchClass          MismatchKind = "class"
	MismatchMethod         MismatchKind = "method"
	MismatchArgumentCount  MismatchKind = "argument_count"
	MismatchArgumentDecode MismatchKind = "argument_decode"
	MismatchResultType     MismatchKind = "result_type"
	MismatchResultDecode   MismatchKind = "result_decode"
	MismatchFaultKind      MismatchKind = "fault_kind"
	MismatchFaultDecode    MismatchKind = "fault_decode"
)

// mismatch describes a failed validation. A nil *mismatch means the entry applies.
type mismatch struct {
	kind   MismatchKind
	detail string
	err    error
}

func mismatchf(kind MismatchKind, format string, args ...any) *mismatch {
	return &mismatch{kind: kind, detail: fmt.Sprintf(format, args...)}
}

// Replayer forces recorded arguments and outcomes onto live invocations while a
// replay session is active. The real implementation always runs; entries that do
// not match the live call are logged and ignored.
type Replayer struct {
	store              storeOps
	codec              Codec
	lanes              *LaneRegistry
	faults             *FaultRegistry
	logger             *slog.Logger
	skipExitOnMismatch bool
}

// NewReplayer creates a Replayer reading from store.
func NewReplayer(store Store, codec Codec, opts ...Option) *Replayer {
	o := buildOptions(opts)
	return &Replayer{
		store:              storeOps{store: store},
		codec:              codec,
		lanes:              NewLaneRegistry(),
		faults:             o.faults,
		logger:             o.logger,
		skipExitOnMismatch: o.skipExitOnMismatch,
	}
}

// Lanes exposes the replayer's lane registry.
func (r *Replayer) Lanes() *LaneRegistry {
	return r.lanes
}

// Intercept replays the next recorded call of the current lane onto inv.
func (r *Replayer) Intercept(ctx context.Context, inv *Invocation) error {
	sessionID, err := r.store.replaySession(ctx)
	if err != nil {
		return err
	}
	if sessionID == "" {
		metrics.PassthroughTotal.WithLabelValues(engineReplay).Inc()
		inv.Proceed(ctx)
		return nil
	}

	ctx, span := tracing.StartInterceptSpan(ctx, engineReplay, inv.Target, inv.Method)
	defer span.End()
	lane := r.lanes.LaneOf(ExecutionID(ctx))
	tracing.MarkSession(span, sessionID, lane)

	entry, err := r.store.fetch(ctx, sessionID, lane)
	if err != nil {
		return err
	}
	args, m := r.validateEntry(inv, entry)
	if m != nil {
		r.warn(span, "entry", inv, m)
		metrics.ReplayTotal.WithLabelValues("entry_mismatch").Inc()
		if r.skipExitOnMismatch && entry != nil && entry.IsEntryRecord() {
			if _, err := r.store.fetch(ctx, sessionID, lane); err != nil {
				return err
			}
		}
		inv.Proceed(ctx)
		return nil
	}
	copy(inv.Args, args)
	r.logger.Debug("replayed call entry",
		"class", inv.Target, "method", inv.Method, "params", len(args), "lane", lane)

	inv.Proceed(ctx)

	exit, err := r.store.fetch(ctx, sessionID, lane)
	if err != nil {
		return err
	}
	if m := r.applyExit(inv, exit); m != nil {
		r.warn(span, "exit", inv, m)
		metrics.ReplayTotal.WithLabelValues("exit_mismatch").Inc()
		return nil
	}
	outcome := "value"
	if exit.Failed() {
		outcome = "fault"
	}
	metrics.ReplayTotal.WithLabelValues(outcome).Inc()
	r.logger.Debug("replayed call exit",
		"class", inv.Target, "method", inv.Method, "outcome", outcome, "lane", lane)
	return nil
}

// validateEntry checks a candidate entry record against inv and decodes its
// arguments. Arguments are only returned when every check passed.
func (r *Replayer) validateEntry(inv *Invocation, e *Entry) ([]any, *mismatch) {
	if m := matchCall(inv, e); m != nil {
		return nil, m
	}
	if e.InputParameters == nil || len(e.InputParameters) != len(inv.Args) {
		return nil, mismatchf(MismatchArgumentCount,
			"expect %d but got %d", len(inv.Args), len(e.InputParameters))
	}
	args := make([]any, len(inv.Args))
	for i := range inv.Args {
		t := inv.argType(i)
		if t == nil {
			return nil, mismatchf(MismatchArgumentDecode, "no type for argument at index %d", i)
		}
		v, err := r.codec.Deserialize(e.InputParameters[i], t)
		if err != nil {
			m := mismatchf(MismatchArgumentDecode, "argument override failure at index %d", i)
			m.err = err
			return nil, m
		}
		args[i] = v
	}
	return args, nil
}

// applyExit validates a candidate exit record and replaces the observed outcome.
func (r *Replayer) applyExit(inv *Invocation, e *Entry) *mismatch {
	if m := matchCall(inv, e); m != nil {
		return m
	}
	if !e.Failed() {
		t := inv.resultType()
		if t == nil {
			return mismatchf(MismatchResultType, "no type for return value")
		}
		v, err := r.codec.Deserialize(e.ReturnValue, t)
		if err != nil {
			m := mismatchf(MismatchResultDecode, "return value of type %s", t)
			m.err = err
			return m
		}
		inv.Result = v
		inv.Err = nil
		return nil
	}
	t, ok := r.faults.TypeOf(e.ErrorType)
	if !ok {
		return mismatchf(MismatchFaultKind, "unregistered fault kind %q", e.ErrorType)
	}
	v, err := r.codec.Deserialize(e.ReturnValue, t)
	if err != nil {
		m := mismatchf(MismatchFaultDecode, "fault of kind %q", e.ErrorType)
		m.err = err
		return m
	}
	fault, ok := asError(v)
	if !ok {
		return mismatchf(MismatchFaultDecode, "fault of kind %q is not an error", e.ErrorType)
	}
	inv.Result = nil
	inv.Err = fault
	return nil
}

// matchCall checks presence and call identity shared by entry and exit records.
func matchCall(inv *Invocation, e *Entry) *mismatch {
	if e == nil {
		return mismatchf(MismatchMissing, "context entry missing")
	}
	if e.ClassName != inv.Target {
		return mismatchf(MismatchClass, "actual class name is %s", inv.Target)
	}
	if e.MethodName != inv.Method {
		return mismatchf(MismatchMethod, "actual method name is %s", inv.Method)
	}
	return nil
}

func (r *Replayer) warn(span trace.Span, phase string, inv *Invocation, m *mismatch) {
	metrics.MismatchTotal.WithLabelValues(string(m.kind)).Inc()
	tracing.MarkMismatch(span, phase, string(m.kind))
	attrs := []any{
		"phase", phase,
		"kind", string(m.kind),
		"class", inv.Target,
		"method", inv.Method,
		"detail", m.detail,
	}
	if m.err != nil {
		attrs = append(attrs, "error", m.err)
	}
	r.logger.Warn("replay override skipped", attrs...)
}
