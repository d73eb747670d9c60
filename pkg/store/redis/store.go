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

// Package redis Redis 版 intercept.Store：每个 (会话, lane) 一个 list，RPUSH 追加、LPOP 消费
package redis

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"callreplay/pkg/config"
	"callreplay/pkg/intercept"
)

const defaultKeyPrefix = "callreplay"

var entryType = reflect.TypeOf(intercept.Entry{})

// Store keeps session ids in two string keys and entries in per-lane lists,
// so recording and replaying processes can run on different hosts.
type Store struct {
	client redis.UniversalClient
	codec  intercept.Codec
	prefix string

	closeOnce sync.Once
	closeErr  error
}

var _ intercept.Store = (*Store)(nil)

// New wraps an existing client. prefix defaults to "callreplay".
func New(client redis.UniversalClient, codec intercept.Codec, prefix string) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: client, codec: codec, prefix: prefix}
}

// Open 按配置连接 Redis 并 Ping
func Open(ctx context.Context, cfg config.RedisConfig, codec intercept.Codec) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client, codec, cfg.KeyPrefix), nil
}

func (s *Store) sessionKey(kind string) string {
	return s.prefix + ":session:" + kind
}

func (s *Store) laneKey(sessionID string, lane int) string {
	return fmt.Sprintf("%s:%s:%d", s.prefix, sessionID, lane)
}

// SetRecordSession 设置当前录制会话；空字符串表示结束录制
func (s *Store) SetRecordSession(ctx context.Context, id string) error {
	return s.setSession(ctx, "record", id)
}

// SetReplaySession 设置当前重放会话；空字符串表示结束重放
func (s *Store) SetReplaySession(ctx context.Context, id string) error {
	return s.setSession(ctx, "replay", id)
}

func (s *Store) setSession(ctx context.Context, kind, id string) error {
	if id == "" {
		return s.client.Del(ctx, s.sessionKey(kind)).Err()
	}
	return s.client.Set(ctx, s.sessionKey(kind), id, 0).Err()
}

func (s *Store) getSession(ctx context.Context, kind string) (string, error) {
	id, err := s.client.Get(ctx, s.sessionKey(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (s *Store) RecordSessionID(ctx context.Context) (string, error) {
	return s.getSession(ctx, "record")
}

func (s *Store) ReplaySessionID(ctx context.Context) (string, error) {
	return s.getSession(ctx, "replay")
}

func (s *Store) Append(ctx context.Context, sessionID string, lane int, e intercept.Entry) error {
	payload, err := s.codec.Serialize(e)
	if err != nil {
		return fmt.Errorf("%w: serialize entry: %w", intercept.ErrCodec, err)
	}
	return s.client.RPush(ctx, s.laneKey(sessionID, lane), payload).Err()
}

func (s *Store) FetchNext(ctx context.Context, sessionID string, lane int) (*intercept.Entry, error) {
	payload, err := s.client.LPop(ctx, s.laneKey(sessionID, lane)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v, err := s.codec.Deserialize(payload, entryType)
	if err != nil {
		return nil, fmt.Errorf("%w: entry on lane %d: %w", intercept.ErrCodec, lane, err)
	}
	e := v.(intercept.Entry)
	return &e, nil
}

// Copy replaces the lanes of session to with copies of the lanes of session
// from, so one recording can be replayed several times.
func (s *Store) Copy(ctx context.Context, from, to string) error {
	src, err := s.scanLanes(ctx, from)
	if err != nil {
		return err
	}
	dst, err := s.scanLanes(ctx, to)
	if err != nil {
		return err
	}
	values := make(map[int][]string, len(src))
	for lane, key := range src {
		v, err := s.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		values[lane] = v
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range dst {
			pipe.Del(ctx, key)
		}
		for lane, v := range values {
			if len(v) == 0 {
				continue
			}
			key := s.laneKey(to, lane)
			pipe.Del(ctx, key)
			args := make([]any, len(v))
			for i, x := range v {
				args[i] = x
			}
			pipe.RPush(ctx, key, args...)
		}
		return nil
	})
	return err
}

// scanLanes returns the list key of every lane of session.
func (s *Store) scanLanes(ctx context.Context, sessionID string) (map[int]string, error) {
	pattern := globEscape(s.prefix+":"+sessionID+":") + "*"
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return laneKeys(keys, s.prefix, sessionID), nil
}

// laneKeys keeps the keys of the form prefix:session:<lane>, once each.
// SCAN may return a key more than once, and the pattern also matches other
// sessions whose id starts with "session:".
func laneKeys(keys []string, prefix, sessionID string) map[int]string {
	head := prefix + ":" + sessionID + ":"
	out := make(map[int]string)
	for _, key := range keys {
		rest, ok := strings.CutPrefix(key, head)
		if !ok {
			continue
		}
		lane, err := strconv.Atoi(rest)
		if err != nil || lane < 0 || strconv.Itoa(lane) != rest {
			continue
		}
		out[lane] = key
	}
	return out
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close releases the client. It is idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
