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

// Package memory 内存版 intercept.Store：会话由宿主显式开始与结束，结束录制时可导出为会话文件
package memory

import (
	"context"
	"errors"
	"io"
	"sync"

	perrors "callreplay/pkg/errors"
	"callreplay/pkg/intercept"
	"callreplay/pkg/store/sessionfile"
)

var (
	// ErrSessionActive 已有同类会话在进行
	ErrSessionActive = errors.New("memory: session already active")
	// ErrSessionMismatch 结束的会话与当前会话不一致
	ErrSessionMismatch = errors.New("memory: session id does not match the active session")
)

// Store keeps recorded and replayed entries in process memory.
// Recording and replaying use separate queues, so both can be active at once.
type Store struct {
	mu       sync.Mutex
	codec    intercept.Codec
	recordID string
	replayID string
	recorded sessionfile.Lanes
	replay   sessionfile.Lanes
}

var _ intercept.Store = (*Store)(nil)

// New 创建内存存储；codec 用于导入导出会话文件
func New(codec intercept.Codec) *Store {
	return &Store{codec: codec}
}

// StartRecording begins a recording session.
func (s *Store) StartRecording(id string) error {
	if id == "" {
		return perrors.Wrap(perrors.ErrInvalidArg, "memory: empty session id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordID != "" {
		return ErrSessionActive
	}
	s.recordID = id
	s.recorded = make(sessionfile.Lanes)
	return nil
}

// StopRecording ends the recording session id and writes its entries to w.
// w may be nil to discard them.
func (s *Store) StopRecording(id string, w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordID == "" || s.recordID != id {
		return ErrSessionMismatch
	}
	records := s.recorded.Records()
	s.recordID = ""
	s.recorded = nil
	if w == nil {
		return nil
	}
	return sessionfile.Write(w, s.codec, records)
}

// StartReplaying begins a replay session reading entries from r.
func (s *Store) StartReplaying(id string, r io.Reader) error {
	if id == "" {
		return perrors.Wrap(perrors.ErrInvalidArg, "memory: empty session id")
	}
	records, err := sessionfile.Read(r, s.codec)
	if err != nil {
		return err
	}
	return s.StartReplayingRecords(id, records)
}

// StartReplayingRecords begins a replay session over already parsed records.
func (s *Store) StartReplayingRecords(id string, records []sessionfile.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replayID != "" {
		return ErrSessionActive
	}
	s.replayID = id
	s.replay = sessionfile.NewLanes(records)
	return nil
}

// StopReplaying ends the replay session id and drops unconsumed entries.
func (s *Store) StopReplaying(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replayID == "" || s.replayID != id {
		return ErrSessionMismatch
	}
	s.replayID = ""
	s.replay = nil
	return nil
}

// Recorded returns the entries of the active recording session lane by lane.
func (s *Store) Recorded() []sessionfile.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded.Records()
}

// Pending returns the number of unconsumed replay entries.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replay.Len()
}

func (s *Store) RecordSessionID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID, nil
}

func (s *Store) ReplaySessionID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replayID, nil
}

// Append 追加到录制队列；无录制会话或会话不符时忽略
func (s *Store) Append(ctx context.Context, sessionID string, lane int, e intercept.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded == nil || sessionID != s.recordID {
		return nil
	}
	s.recorded.Push(lane, &e)
	return nil
}

// FetchNext 从重放队列取出下一条；无重放会话或会话不符时返回 nil
func (s *Store) FetchNext(ctx context.Context, sessionID string, lane int) (*intercept.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replay == nil || sessionID != s.replayID {
		return nil, nil
	}
	return s.replay.Pop(lane), nil
}
