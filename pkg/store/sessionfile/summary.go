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

package sessionfile

import (
	"context"
	"fmt"
	"sort"

	perrors "callreplay/pkg/errors"
	"callreplay/pkg/intercept"
)

// Call is one paired entry and exit record.
type Call struct {
	Class     string
	Method    string
	Params    int
	Fault     string
	Completed bool
}

// LaneSummary describes the calls recorded on one lane.
type LaneSummary struct {
	Lane     int
	Calls    []Call
	Problems []string
}

// Faults returns the number of completed calls that recorded a fault.
func (s LaneSummary) Faults() int {
	n := 0
	for _, c := range s.Calls {
		if c.Fault != "" {
			n++
		}
	}
	return n
}

// Summarize pairs the records of each lane and reports records that do not
// form entry/exit pairs of the same call.
func Summarize(records []Record) []LaneSummary {
	byLane := make(map[int]*LaneSummary)
	open := make(map[int]*Call)
	pos := make(map[int]int)
	for _, r := range records {
		s, ok := byLane[r.Lane]
		if !ok {
			s = &LaneSummary{Lane: r.Lane}
			byLane[r.Lane] = s
		}
		i := pos[r.Lane]
		pos[r.Lane]++

		e := r.Entry
		cur := open[r.Lane]
		switch {
		case e == nil:
			s.Problems = append(s.Problems, fmt.Sprintf("#%d: nil entry", i))
		case e.IsEntryRecord():
			if cur != nil {
				s.Problems = append(s.Problems,
					fmt.Sprintf("#%d: %s.%s starts before %s.%s returned", i, e.ClassName, e.MethodName, cur.Class, cur.Method))
				s.Calls = append(s.Calls, *cur)
			}
			open[r.Lane] = &Call{Class: e.ClassName, Method: e.MethodName, Params: len(e.InputParameters)}
		default:
			if cur == nil {
				s.Problems = append(s.Problems, fmt.Sprintf("#%d: exit %s.%s without entry", i, e.ClassName, e.MethodName))
				continue
			}
			if cur.Class != e.ClassName || cur.Method != e.MethodName {
				s.Problems = append(s.Problems,
					fmt.Sprintf("#%d: exit %s.%s closes %s.%s", i, e.ClassName, e.MethodName, cur.Class, cur.Method))
			}
			cur.Fault = e.ErrorType
			cur.Completed = true
			s.Calls = append(s.Calls, *cur)
			open[r.Lane] = nil
		}
	}

	out := make([]LaneSummary, 0, len(byLane))
	for lane, s := range byLane {
		if cur := open[lane]; cur != nil {
			s.Problems = append(s.Problems, fmt.Sprintf("%s.%s has no exit", cur.Class, cur.Method))
			s.Calls = append(s.Calls, *cur)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lane < out[j].Lane })
	return out
}

// Paired reports whether every lane in summaries is free of problems.
func Paired(summaries []LaneSummary) bool {
	for _, s := range summaries {
		if len(s.Problems) > 0 {
			return false
		}
	}
	return true
}

// Append writes every entry of records into s under sessionID and returns
// the number written. Nil slots only exist in session files and the memory
// store, so a session holding one is rejected before anything is written.
func Append(ctx context.Context, s intercept.Store, sessionID string, records []Record) (int, error) {
	for i, r := range records {
		if r.Entry == nil {
			return 0, perrors.Wrapf(perrors.ErrNilSlot, "sessionfile: record %d on lane %d", i, r.Lane)
		}
	}
	n := 0
	for _, r := range records {
		if err := s.Append(ctx, sessionID, r.Lane, *r.Entry); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
