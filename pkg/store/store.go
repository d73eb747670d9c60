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

// Package store 按配置创建 intercept.Store
package store

import (
	"context"
	"io"
	"os"

	"callreplay/pkg/config"
	"callreplay/pkg/errors"
	"callreplay/pkg/intercept"
	"callreplay/pkg/store/badger"
	"callreplay/pkg/store/file"
	"callreplay/pkg/store/header"
	"callreplay/pkg/store/memory"
	"callreplay/pkg/store/postgres"
	"callreplay/pkg/store/redis"
	"callreplay/pkg/store/sqlstore"
)

const (
	TypeMemory   = "memory"
	TypeFile     = "file"
	TypeHeader   = "header"
	TypeRedis    = "redis"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
	TypeBadger   = "badger"
)

// sessionSetter is implemented by stores whose active sessions are kept in the backend.
type sessionSetter interface {
	SetRecordSession(ctx context.Context, id string) error
	SetReplaySession(ctx context.Context, id string) error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New 根据 cfg.Store.Type 创建存储；cfg.Session 中的会话 id 会被设为当前会话
func New(ctx context.Context, cfg *config.Config, codec intercept.Codec) (intercept.Store, io.Closer, error) {
	switch cfg.Store.Type {
	case "", TypeMemory:
		s := memory.New(codec)
		if err := startMemory(s, cfg.Session); err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case TypeFile:
		s := file.New(cfg.Session, codec)
		return s, s, nil
	case TypeHeader:
		return header.New(codec), nopCloser{}, nil
	case TypeRedis:
		s, err := redis.Open(ctx, cfg.Store.Redis, codec)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open redis store")
		}
		return withSessions(ctx, s, s, cfg.Session)
	case TypePostgres:
		s, err := postgres.Open(ctx, cfg.Store.Postgres, codec)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open postgres store")
		}
		return withSessions(ctx, s, s, cfg.Session)
	case TypeSQLite:
		s, err := sqlstore.Open(cfg.Store.SQLite, codec)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open sqlite store")
		}
		return withSessions(ctx, s, s, cfg.Session)
	case TypeBadger:
		s, err := badger.Open(cfg.Store.Badger, codec)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open badger store")
		}
		return withSessions(ctx, s, s, cfg.Session)
	default:
		return nil, nil, errors.Wrapf(errors.ErrUnsupported, "store type %q", cfg.Store.Type)
	}
}

func startMemory(s *memory.Store, session config.SessionConfig) error {
	if session.RecordID != "" {
		if err := s.StartRecording(session.RecordID); err != nil {
			return err
		}
	}
	if session.ReplayID != "" && session.ReplayFile != "" {
		f, err := os.Open(session.ReplayFile)
		if err != nil {
			return errors.Wrap(err, "open replay file")
		}
		defer f.Close()
		return s.StartReplaying(session.ReplayID, f)
	}
	return nil
}

type sessionStore interface {
	intercept.Store
	sessionSetter
}

func withSessions(ctx context.Context, s sessionStore, c io.Closer, session config.SessionConfig) (intercept.Store, io.Closer, error) {
	if session.RecordID != "" {
		if err := s.SetRecordSession(ctx, session.RecordID); err != nil {
			_ = c.Close()
			return nil, nil, errors.Wrap(err, "set record session")
		}
	}
	if session.ReplayID != "" {
		if err := s.SetReplaySession(ctx, session.ReplayID); err != nil {
			_ = c.Close()
			return nil, nil, errors.Wrap(err, "set replay session")
		}
	}
	return s, c, nil
}
