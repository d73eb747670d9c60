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

// Package file 文件版 intercept.Store：会话 id 即会话文件名，来自 session.record_file / session.replay_file
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"callreplay/pkg/config"
	"callreplay/pkg/intercept"
	"callreplay/pkg/store/sessionfile"
)

// Store appends recorded entries to the record file as they happen and serves
// replay entries from the replay file, loaded once on first use.
type Store struct {
	mu         sync.Mutex
	codec      intercept.Codec
	recordFile string
	replayFile string

	file   *os.File
	writer *bufio.Writer
	replay sessionfile.Lanes
}

var _ intercept.Store = (*Store)(nil)

// New 创建文件存储；文件在首次查询会话 id 时才打开
func New(cfg config.SessionConfig, codec intercept.Codec) *Store {
	return &Store{
		codec:      codec,
		recordFile: cfg.RecordFile,
		replayFile: cfg.ReplayFile,
	}
}

// RecordSessionID 返回录制文件名，并在首次调用时创建文件
func (s *Store) RecordSessionID(ctx context.Context) (string, error) {
	if s.recordFile == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		f, err := os.Create(s.recordFile)
		if err != nil {
			return "", fmt.Errorf("create record file: %w", err)
		}
		s.file = f
		s.writer = bufio.NewWriter(f)
	}
	return s.recordFile, nil
}

// ReplaySessionID 返回重放文件名，并在首次调用时加载全部条目
func (s *Store) ReplaySessionID(ctx context.Context) (string, error) {
	if s.replayFile == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replay == nil {
		f, err := os.Open(s.replayFile)
		if err != nil {
			return "", fmt.Errorf("open replay file: %w", err)
		}
		defer f.Close()
		records, err := sessionfile.Read(f, s.codec)
		if err != nil {
			return "", fmt.Errorf("load replay file %s: %w", s.replayFile, err)
		}
		s.replay = sessionfile.NewLanes(records)
	}
	return s.replayFile, nil
}

// Append 写入一条并立即 flush
func (s *Store) Append(ctx context.Context, sessionID string, lane int, e intercept.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	if err := sessionfile.WriteRecord(s.writer, s.codec, lane, &e); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *Store) FetchNext(ctx context.Context, sessionID string, lane int) (*intercept.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replay == nil {
		return nil, nil
	}
	return s.replay.Pop(lane), nil
}

// Close 关闭录制文件
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.writer.Flush()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file, s.writer = nil, nil
	return err
}
