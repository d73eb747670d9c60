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

package header

import (
	"reflect"
	"sort"
	"sync"

	"github.com/go-resty/resty/v2"

	"callreplay/pkg/intercept"
)

// Session is the client side of a header-carried session. Recorded holds the
// entry headers returned by the last recorded response; sending them back in
// Replay replays that request.
type Session struct {
	mu       sync.Mutex
	RecordID string
	ReplayID string
	Replay   map[string]string
	recorded map[string]string
}

// Attach makes every request of rc carry s and collects recorded entries from responses.
func (s *Session) Attach(rc *resty.Client) *resty.Client {
	rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		s.Apply(req)
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		s.Harvest(resp)
		return nil
	})
	return rc
}

// Apply sets the session headers on req.
func (s *Session) Apply(req *resty.Request) *resty.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecordID != "" {
		req.SetHeader(RecordHeader, s.RecordID)
	}
	if s.ReplayID != "" {
		req.SetHeader(ReplayHeader, s.ReplayID)
		for name, value := range s.Replay {
			req.SetHeader(name, value)
		}
	}
	return req
}

// Harvest stores the entry headers of resp as the recorded entries.
func (s *Session) Harvest(resp *resty.Response) {
	recorded := make(map[string]string)
	for name, values := range resp.Header() {
		if _, _, ok := ParseEntryKey(name); ok && len(values) > 0 {
			recorded[name] = values[0]
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = recorded
}

// Recorded returns the entry headers of the last response.
func (s *Session) Recorded() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.recorded))
	for k, v := range s.recorded {
		out[k] = v
	}
	return out
}

// IndexedEntry is a decoded entry header.
type IndexedEntry struct {
	Lane  int
	Index int
	Entry intercept.Entry
}

// Decode parses entry headers into entries ordered by index.
func Decode(entries map[string]string, codec intercept.Codec) ([]IndexedEntry, error) {
	out := make([]IndexedEntry, 0, len(entries))
	for name, value := range entries {
		lane, index, ok := ParseEntryKey(name)
		if !ok {
			continue
		}
		v, err := codec.Deserialize(value, reflect.TypeOf(intercept.Entry{}))
		if err != nil {
			return nil, err
		}
		out = append(out, IndexedEntry{Lane: lane, Index: index, Entry: v.(intercept.Entry)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}
