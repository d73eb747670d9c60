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

// Package header carries sessions inside request and response headers.
// The caller sends session ids in the dcir (record) and dcip (replay) headers;
// recorded entries come back as dcec-<lane>-<index> response headers and are
// sent again under the same names to replay the request.
package header

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"callreplay/pkg/intercept"
)

const (
	RecordHeader = "dcir"
	ReplayHeader = "dcip"
	EntryPrefix  = "dcec-"
)

var entryType = reflect.TypeOf(intercept.Entry{})

// EntryKey returns the header name of the entry at index on lane.
func EntryKey(lane, index int) string {
	return fmt.Sprintf("%s%d-%d", EntryPrefix, lane, index)
}

// ParseEntryKey splits a dcec-<lane>-<index> header name.
func ParseEntryKey(name string) (lane, index int, ok bool) {
	rest, found := strings.CutPrefix(strings.ToLower(name), EntryPrefix)
	if !found {
		return 0, 0, false
	}
	l, i, found := strings.Cut(rest, "-")
	if !found {
		return 0, 0, false
	}
	lane, err := strconv.Atoi(l)
	if err != nil {
		return 0, 0, false
	}
	index, err = strconv.Atoi(i)
	if err != nil {
		return 0, 0, false
	}
	return lane, index, true
}

// Header is one response header produced while recording.
type Header struct {
	Name  string
	Value string
}

// Exchange is the per-request state: incoming session ids and replay entries,
// outgoing recorded entries, and the entry index shared by both directions.
type Exchange struct {
	mu       sync.Mutex
	recordID string
	replayID string
	request  map[string]string
	response []Header
	next     int
}

// NewExchange builds an exchange from request headers. Names are matched case-insensitively.
func NewExchange(headers map[string]string) *Exchange {
	ex := &Exchange{request: make(map[string]string)}
	for name, value := range headers {
		switch lower := strings.ToLower(name); {
		case lower == RecordHeader:
			ex.recordID = value
		case lower == ReplayHeader:
			ex.replayID = value
		case strings.HasPrefix(lower, EntryPrefix):
			ex.request[lower] = value
		}
	}
	return ex
}

// ResponseHeaders returns the recorded entries in append order.
func (ex *Exchange) ResponseHeaders() []Header {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return append([]Header(nil), ex.response...)
}

func (ex *Exchange) nextIndex() int {
	i := ex.next
	ex.next++
	return i
}

func (ex *Exchange) put(lane int, value string) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.response = append(ex.response, Header{Name: EntryKey(lane, ex.nextIndex()), Value: value})
}

func (ex *Exchange) take(lane int) string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.request[EntryKey(lane, ex.nextIndex())]
}

type exchangeKey struct{}

// WithExchange attaches ex to ctx.
func WithExchange(ctx context.Context, ex *Exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

// ExchangeFrom returns the exchange carried by ctx, or nil.
func ExchangeFrom(ctx context.Context) *Exchange {
	ex, _ := ctx.Value(exchangeKey{}).(*Exchange)
	return ex
}

// Store is an intercept.Store over the exchange of the current request.
// Calls made outside a request see no active session.
type Store struct {
	codec intercept.Codec
}

var _ intercept.Store = (*Store)(nil)

func New(codec intercept.Codec) *Store {
	return &Store{codec: codec}
}

func (s *Store) RecordSessionID(ctx context.Context) (string, error) {
	if ex := ExchangeFrom(ctx); ex != nil {
		return ex.recordID, nil
	}
	return "", nil
}

func (s *Store) ReplaySessionID(ctx context.Context) (string, error) {
	if ex := ExchangeFrom(ctx); ex != nil {
		return ex.replayID, nil
	}
	return "", nil
}

func (s *Store) Append(ctx context.Context, sessionID string, lane int, e intercept.Entry) error {
	ex := ExchangeFrom(ctx)
	if ex == nil {
		return nil
	}
	value, err := s.codec.Serialize(e)
	if err != nil {
		return fmt.Errorf("%w: serialize entry: %w", intercept.ErrCodec, err)
	}
	ex.put(lane, value)
	return nil
}

func (s *Store) FetchNext(ctx context.Context, sessionID string, lane int) (*intercept.Entry, error) {
	ex := ExchangeFrom(ctx)
	if ex == nil {
		return nil, nil
	}
	value := ex.take(lane)
	if value == "" {
		return nil, nil
	}
	v, err := s.codec.Deserialize(value, entryType)
	if err != nil {
		return nil, fmt.Errorf("%w: entry on lane %d: %w", intercept.ErrCodec, lane, err)
	}
	e := v.(intercept.Entry)
	return &e, nil
}
