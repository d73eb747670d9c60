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

// Package sqlstore database/sql 版 intercept.Store，默认驱动为纯 Go 的 SQLite
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	_ "modernc.org/sqlite"

	"callreplay/pkg/config"
	"callreplay/pkg/intercept"
)

const schema = `
CREATE TABLE IF NOT EXISTS context_entries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL,
    lane        INTEGER NOT NULL,
    payload     TEXT    NOT NULL,
    consumed    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_context_entries_lane ON context_entries (session_id, lane, consumed, id);
CREATE TABLE IF NOT EXISTS context_sessions (
    kind        TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL
);`

const (
	kindRecord = "record"
	kindReplay = "replay"
)

var entryType = reflect.TypeOf(intercept.Entry{})

// Store 与 postgres 包同构的表结构，适合单机或嵌入式场景
type Store struct {
	db    *sql.DB
	codec intercept.Codec
}

var _ intercept.Store = (*Store)(nil)

// New 使用已打开的 db 并执行建表
func New(db *sql.DB, codec intercept.Codec) (*Store, error) {
	s := &Store{db: db, codec: codec}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open 打开 SQLite 数据库文件（":memory:" 为内存库）
func Open(cfg config.SQLiteConfig, codec intercept.Codec) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 单连接：内存库按连接隔离，且 SQLite 只允许一个写者
	db.SetMaxOpenConns(1)
	s, err := New(db, codec)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.ExecContext(context.Background(), schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
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
		_, err := s.db.ExecContext(ctx, `DELETE FROM context_sessions WHERE kind = ?`, kind)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO context_sessions (kind, session_id) VALUES (?, ?)
		 ON CONFLICT (kind) DO UPDATE SET session_id = excluded.session_id`,
		kind, id)
	return err
}

func (s *Store) session(ctx context.Context, kind string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT session_id FROM context_sessions WHERE kind = ?`, kind).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO context_entries (session_id, lane, payload) VALUES (?, ?, ?)`,
		sessionID, lane, payload)
	return err
}

func (s *Store) FetchNext(ctx context.Context, sessionID string, lane int) (*intercept.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var payload string
	err = tx.QueryRowContext(ctx,
		`SELECT id, payload FROM context_entries
		 WHERE session_id = ? AND lane = ? AND consumed = 0
		 ORDER BY id LIMIT 1`,
		sessionID, lane).Scan(&id, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE context_entries SET consumed = 1 WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	v, err := s.codec.Deserialize(payload, entryType)
	if err != nil {
		return nil, fmt.Errorf("%w: entry on lane %d: %w", intercept.ErrCodec, lane, err)
	}
	e := v.(intercept.Entry)
	return &e, nil
}

// Rewind 将会话的全部条目标记为未消费
func (s *Store) Rewind(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE context_entries SET consumed = 0 WHERE session_id = ? AND consumed = 1`, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
