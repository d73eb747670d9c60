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

// Package postgres PostgreSQL 版 intercept.Store：条目表 + 会话表
package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"callreplay/pkg/config"
	"callreplay/pkg/intercept"
)

// Schema 建表语句，Open 时自动执行
const Schema = `
CREATE TABLE IF NOT EXISTS context_entries (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT    NOT NULL,
    lane        INTEGER NOT NULL,
    payload     TEXT    NOT NULL,
    consumed    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_context_entries_lane
    ON context_entries (session_id, lane, id) WHERE NOT consumed;
CREATE TABLE IF NOT EXISTS context_sessions (
    kind        TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL
);
`

const (
	kindRecord = "record"
	kindReplay = "replay"
)

var entryType = reflect.TypeOf(intercept.Entry{})

// Store PostgreSQL 实现；多个重放进程可共享一个会话，每个 lane 仍按追加顺序消费
type Store struct {
	pool  *pgxpool.Pool
	codec intercept.Codec
}

var _ intercept.Store = (*Store)(nil)

// Open 创建连接池、Ping 并建表
func Open(ctx context.Context, cfg config.PostgresConfig, codec intercept.Codec) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{pool: pool, codec: codec}, nil
}

// Close 关闭连接池
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// SetRecordSession 设置录制会话；空字符串表示结束
func (s *Store) SetRecordSession(ctx context.Context, id string) error {
	return s.setSession(ctx, kindRecord, id)
}

// SetReplaySession 设置重放会话；空字符串表示结束
func (s *Store) SetReplaySession(ctx context.Context, id string) error {
	return s.setSession(ctx, kindReplay, id)
}

func (s *Store) setSession(ctx context.Context, kind, id string) error {
	if id == "" {
		_, err := s.pool.Exec(ctx, `DELETE FROM context_sessions WHERE kind = $1`, kind)
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO context_sessions (kind, session_id) VALUES ($1, $2)
		 ON CONFLICT (kind) DO UPDATE SET session_id = EXCLUDED.session_id`,
		kind, id)
	return err
}

func (s *Store) session(ctx context.Context, kind string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT session_id FROM context_sessions WHERE kind = $1`, kind).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (s *Store) RecordSessionID(ctx context.Context) (string, error) {
	return s.session(ctx, kindRecord)
}

func (s *Store) ReplaySessionID(ctx context.Context) (string, error) {
	return s.session(ctx, kindReplay)
}

func (s *Store) Append(ctx context.Context, sessionID string, lane int, e intercept.Entry) error {
	payload, err := s.codec.Serialize(e)
	if err != nil {
		return fmt.Errorf("%w: serialize entry: %w", intercept.ErrCodec, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO context_entries (session_id, lane, payload) VALUES ($1, $2, $3)`,
		sessionID, lane, payload)
	return err
}

// 同一 (会话, lane) 的消费由事务级 advisory lock 串行化，保证严格 FIFO
const (
	lockLaneSQL = `SELECT pg_advisory_xact_lock(hashtext($1), $2)`
	popLaneSQL  = `UPDATE context_entries SET consumed = TRUE
		 WHERE id = (
		     SELECT id FROM context_entries
		     WHERE session_id = $1 AND lane = $2 AND NOT consumed
		     ORDER BY id LIMIT 1
		 )
		 RETURNING payload`
)

func (s *Store) FetchNext(ctx context.Context, sessionID string, lane int) (*intercept.Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, lockLaneSQL, sessionID, lane); err != nil {
		return nil, err
	}
	var payload string
	err = tx.QueryRow(ctx, popLaneSQL, sessionID, lane).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	v, err := s.codec.Deserialize(payload, entryType)
	if err != nil {
		return nil, fmt.Errorf("%w: entry on lane %d: %w", intercept.ErrCodec, lane, err)
	}
	e := v.(intercept.Entry)
	return &e, nil
}

// Rewind 将会话的全部条目标记为未消费，便于再次重放
func (s *Store) Rewind(ctx context.Context, sessionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE context_entries SET consumed = FALSE WHERE session_id = $1 AND consumed`, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
