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

package intercept_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"callreplay/pkg/codec"
	"callreplay/pkg/intercept"
)

type appended struct {
	session string
	lane    int
	entry   intercept.Entry
}

// spyStore is an in-memory Store that records every call and can inject failures.
type spyStore struct {
	mu       sync.Mutex
	recordID string
	replayID string
	appends  []appended
	queues   map[int][]*intercept.Entry
	fetches  int

	sessionErr error
	fetchErr   error
	// appendErr is consulted with the 0-based index of each append.
	appendErr func(n int) error
}

func newSpyStore() *spyStore {
	return &spyStore{queues: make(map[int][]*intercept.Entry)}
}

func (s *spyStore) RecordSessionID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID, s.sessionErr
}

func (s *spyStore) ReplaySessionID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replayID, s.sessionErr
}

func (s *spyStore) Append(ctx context.Context, sessionID string, lane int, e intercept.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		if err := s.appendErr(len(s.appends)); err != nil {
			return err
		}
	}
	s.appends = append(s.appends, appended{session: sessionID, lane: lane, entry: e.Clone()})
	return nil
}

func (s *spyStore) FetchNext(ctx context.Context, sessionID string, lane int) (*intercept.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	q := s.queues[lane]
	if len(q) == 0 {
		return nil, nil
	}
	s.queues[lane] = q[1:]
	return q[0], nil
}

func (s *spyStore) enqueue(lane int, entries ...intercept.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e := e
		s.queues[lane] = append(s.queues[lane], &e)
	}
}

func (s *spyStore) remaining(lane int) []*intercept.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*intercept.Entry(nil), s.queues[lane]...)
}

func (s *spyStore) recorded() []appended {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]appended(nil), s.appends...)
}

// Foo is the intercepted capability used throughout the tests.
type Foo interface {
	Bar(ctx context.Context, x int) (int, error)
}

type realFoo struct {
	mu   sync.Mutex
	seen []int
	fail error
}

func (f *realFoo) Bar(ctx context.Context, x int) (int, error) {
	f.mu.Lock()
	f.seen = append(f.seen, x)
	f.mu.Unlock()
	if f.fail != nil {
		return 0, f.fail
	}
	return x * 2, nil
}

func (f *realFoo) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.seen...)
}

var barMethod = intercept.Method{Target: "Foo", Name: "Bar"}

type fooDecorator struct {
	next Foo
	ic   intercept.Interceptor
}

func (d fooDecorator) Bar(ctx context.Context, x int) (int, error) {
	return intercept.Call(ctx, d.ic, barMethod, []any{x}, func(ctx context.Context, args []any) (int, error) {
		return d.next.Bar(ctx, intercept.ArgAs[int](args, 0))
	})
}

// notFoundError is a registered fault type.
type notFoundError struct {
	Key string `json:"key"`
}

func (e *notFoundError) Error() string { return "not found: " + e.Key }

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func serialize(t *testing.T, v any) string {
	t.Helper()
	s, err := codec.JSON{}.Serialize(v)
	require.NoError(t, err)
	return s
}
