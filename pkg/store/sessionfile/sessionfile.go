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

// Package sessionfile reads and writes recorded sessions as text: each entry is
// a line holding the decimal lane followed by a line holding the serialized
// entry. An empty entry line stands for a nil entry.
package sessionfile

import (
	"bufio"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"

	"callreplay/pkg/intercept"
)

// maxLine bounds a single serialized entry.
const maxLine = 16 << 20

var entryType = reflect.TypeOf(intercept.Entry{})

// Record is one lane-tagged entry of a session file.
type Record struct {
	Lane  int
	Entry *intercept.Entry
}

// WriteRecord writes one record.
func WriteRecord(w io.Writer, c intercept.Codec, lane int, e *intercept.Entry) error {
	var line string
	if e != nil {
		s, err := c.Serialize(*e)
		if err != nil {
			return fmt.Errorf("%w: serialize entry: %w", intercept.ErrCodec, err)
		}
		line = s
	}
	_, err := fmt.Fprintf(w, "%d\n%s\n", lane, line)
	return err
}

// Write writes records in order.
func Write(w io.Writer, c intercept.Codec, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if err := WriteRecord(bw, c, r.Lane, r.Entry); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read parses records until EOF, a blank lane line, or a lane line that is not a number.
func Read(r io.Reader, c intercept.Codec) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	var records []Record
	lineNo := 0
	for sc.Scan() {
		lineNo++
		lane, err := strconv.Atoi(sc.Text())
		if err != nil {
			break
		}
		rec := Record{Lane: lane}
		if sc.Scan() {
			lineNo++
			if text := sc.Text(); text != "" {
				v, err := c.Deserialize(text, entryType)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %w", intercept.ErrCodec, lineNo, err)
				}
				e := v.(intercept.Entry)
				rec.Entry = &e
			}
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Lanes holds per-lane FIFO queues. It is not safe for concurrent use.
type Lanes map[int][]*intercept.Entry

// NewLanes groups records by lane, keeping their order.
func NewLanes(records []Record) Lanes {
	l := make(Lanes)
	for _, r := range records {
		l.Push(r.Lane, r.Entry)
	}
	return l
}

// Push appends a copy of e to the queue of lane.
func (l Lanes) Push(lane int, e *intercept.Entry) {
	if e != nil {
		c := e.Clone()
		e = &c
	}
	l[lane] = append(l[lane], e)
}

// Pop removes and returns a copy of the head of the queue of lane. It returns
// nil when the queue is empty or the head is a nil entry.
func (l Lanes) Pop(lane int) *intercept.Entry {
	q := l[lane]
	if len(q) == 0 {
		return nil
	}
	e := q[0]
	q[0] = nil
	l[lane] = q[1:]
	if e == nil {
		return nil
	}
	c := e.Clone()
	return &c
}

// Len returns the number of queued entries across all lanes.
func (l Lanes) Len() int {
	n := 0
	for _, q := range l {
		n += len(q)
	}
	return n
}

// Records flattens the queues lane by lane in ascending lane order.
func (l Lanes) Records() []Record {
	lanes := make([]int, 0, len(l))
	for lane := range l {
		lanes = append(lanes, lane)
	}
	sort.Ints(lanes)
	var out []Record
	for _, lane := range lanes {
		for _, e := range l[lane] {
			out = append(out, Record{Lane: lane, Entry: e})
		}
	}
	return out
}
