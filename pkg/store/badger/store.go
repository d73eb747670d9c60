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

// Package badger 嵌入式 KV 版 intercept.Store。
//
// 键布局：
//
//	s/<kind>                          当前 record / replay 会话
//	e/<session>\x00<lane><seq>        条目，lane 为 4 字节、seq 为 8 字节大端序
//	n/<session>\x00<lane>             下一个写入序号
//	c/<session>\x00<lane>             下一个读取序号
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"sync"

	dgbadger "github.com/dgraph-io/badger/v4"

	"callreplay/pkg/config"
	"callreplay/pkg/intercept"
)

const (
	kindRecord = "record"
	kindReplay = "replay"
)

var entryType = reflect.TypeOf(intercept.Entry{})

// Store keeps entries in a local Badger database so a recording survives
// process restarts without an external server.
type Store struct {
	db    *dgbadger.DB
	codec intercept.Codec
	mu    sync.Mutex
}

var _ intercept.Store = (*Store)(nil)

// Open 打开 Badger；InMemory 为 true 时不落盘（测试用）
func Open(cfg config.BadgerConfig, codec intercept.Codec) (*Store, error) {
	opts := dgbadger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else if cfg.Dir == "" {
		return nil, fmt.Errorf("badger dir is required")
	}
	opts = opts.WithLogger(nil)
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, codec: codec}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

func sessionKey(kind string) []byte {
	return []byte("s/" + kind)
}

func laneKey(prefix byte, sessionID string, lane int) []byte {
	k := make([]byte, 0, 2+len(sessionID)+1+4)
	k = append(k, prefix, '/')
	k = append(k, sessionID...)
	k = append(k, 0)
	return binary.BigEndian.AppendUint32(k, uint32(lane))
}

func entryKey(sessionID string, lane int, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(laneKey('e', sessionID, lane), seq)
}

func readSeq(txn *dgbadger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence at %q", key)
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

func writeSeq(txn *dgbadger.Txn, key []byte, seq uint64) error {
	return txn.Set(key, binary.BigEndian.AppendUint64(nil, seq))
}

// SetRecordSession 设置录制会话；空字符串表示结束
func (s *Store) SetRecordSession(ctx context.Context, id string) error {
	return s.setSession(kindRecord, id)
}

// SetReplaySession 设置重放会话；空字符串表示结束
func (s *Store) SetReplaySession(ctx context.Context, id string) error {
	return s.setSession(kindReplay, id)
}

func (s *Store) setSession(kind, id string) error {
	return s.db.Update(func(txn *dgbadger.Txn) error {
		if id == "" {
			return txn.Delete(sessionKey(kind))
		}
		return txn.Set(sessionKey(kind), []byte(id))
	})
}

func (s *Store) session(kind string) (string, error) {
	var id string
	err := s.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get(sessionKey(kind))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		id = string(v)
		return err
	})
	return id, err
}

func (s *Store) RecordSessionID(ctx context.Context) (string, error) {
	return s.session(kindRecord)
}

func (s *Store) ReplaySessionID(ctx context.Context) (string, error) {
	return s.session(kindReplay)
}

func (s *Store) Append(ctx context.Context, sessionID string, lane int, e intercept.Entry) error {
	payload, err := s.codec.Serialize(e)
	if err != nil {
		return fmt.Errorf("%w: serialize entry: %w", intercept.ErrCodec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *dgbadger.Txn) error {
		nextKey := laneKey('n', sessionID, lane)
		seq, err := readSeq(txn, nextKey)
		if err != nil {
			return err
		}
		if err := txn.Set(entryKey(sessionID, lane, seq), []byte(payload)); err != nil {
			return err
		}
		return writeSeq(txn, nextKey, seq+1)
	})
}

func (s *Store) FetchNext(ctx context.Context, sessionID string, lane int) (*intercept.Entry, error) {
	var payload []byte
	s.mu.Lock()
	err := s.db.Update(func(txn *dgbadger.Txn) error {
		cursorKey := laneKey('c', sessionID, lane)
		seq, err := readSeq(txn, cursorKey)
		if err != nil {
			return err
		}
		item, err := txn.Get(entryKey(sessionID, lane, seq))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if payload, err = item.ValueCopy(nil); err != nil {
			return err
		}
		return writeSeq(txn, cursorKey, seq+1)
	})
	s.mu.Unlock()
	if err != nil || payload == nil {
		return nil, err
	}
	v, err := s.codec.Deserialize(string(payload), entryType)
	if err != nil {
		return nil, fmt.Errorf("%w: entry on lane %d: %w", intercept.ErrCodec, lane, err)
	}
	e := v.(intercept.Entry)
	return &e, nil
}

// Rewind 重置会话所有 lane 的读取游标
func (s *Store) Rewind(ctx context.Context, sessionID string) error {
	prefix := append([]byte("c/"+sessionID), 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *dgbadger.Txn) error {
		it := txn.NewIterator(dgbadger.IteratorOptions{Prefix: prefix})
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
