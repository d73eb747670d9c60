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
	"sync"
)

type contextKey string

const executionIDKey contextKey = "intercept.execution_id"

// DefaultExecutionID is the identity of calls whose context carries no execution id.
const DefaultExecutionID = "default"

// WithExecutionID marks ctx as belonging to one logical execution context.
// Every call made with the returned context is assigned to the same lane.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey, id)
}

// ExecutionID returns the execution identity carried by ctx.
func ExecutionID(ctx context.Context) string {
	if ctx == nil {
		return DefaultExecutionID
	}
	if v, ok := ctx.Value(executionIDKey).(string); ok && v != "" {
		return v
	}
	return DefaultExecutionID
}

// LaneRegistry assigns lanes to execution identities in first-seen order.
// Lanes are never removed or reused.
type LaneRegistry struct {
	mu    sync.Mutex
	lanes map[string]int
}

// NewLaneRegistry creates an empty registry.
func NewLaneRegistry() *LaneRegistry {
	return &LaneRegistry{lanes: make(map[string]int)}
}

// LaneOf returns the lane of identity, assigning the next free lane on first use.
func (r *LaneRegistry) LaneOf(identity string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lane, ok := r.lanes[identity]; ok {
		return lane
	}
	lane := len(r.lanes)
	r.lanes[identity] = lane
	return lane
}

// Len returns the number of distinct identities seen.
func (r *LaneRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lanes)
}
