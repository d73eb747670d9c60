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

package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry 全局 Registry，供宿主进程暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RecordTotal, ReplayTotal, MismatchTotal,
		PassthroughTotal, StoreDuration,
	)
}

// RecordTotal recorded calls by outcome.
var RecordTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "callreplay_record_total",
		Help: "Recorded calls by outcome.",
	},
	[]string{"outcome"}, // value | fault
)

// ReplayTotal replayed calls by result.
var ReplayTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "callreplay_replay_total",
		Help: "Replayed calls by result.",
	},
	[]string{"result"}, // value | fault | entry_mismatch | exit_mismatch
)

// MismatchTotal replay validation failures by kind.
var MismatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "callreplay_mismatch_total",
		Help: "Replay validation failures by kind.",
	},
	[]string{"kind"},
)

// PassthroughTotal calls that ran without an active session.
var PassthroughTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "callreplay_passthrough_total",
		Help: "Calls passed through without an active session.",
	},
	[]string{"engine"}, // record | replay
)

// StoreDuration store operation latency in seconds.
var StoreDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "callreplay_store_duration_seconds",
		Help:    "Store operation latency in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"op"}, // session | append | fetch
)

// ObserveStore records the latency of one store operation started at start.
func ObserveStore(op string, start time.Time) {
	StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// WritePrometheus 将 Prometheus 文本格式写入 w
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
