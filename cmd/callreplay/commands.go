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

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"callreplay/pkg/archive"
	"callreplay/pkg/codec"
	"callreplay/pkg/config"
	"callreplay/pkg/errors"
	"callreplay/pkg/intercept"
	"callreplay/pkg/log"
	"callreplay/pkg/store"
	"callreplay/pkg/store/sessionfile"
)

// env 命令执行所需的配置、日志与编解码
type env struct {
	cfg    *config.Config
	logger *log.Logger
	codec  intercept.Codec
}

func loadEnv(stderr io.Writer) (*env, bool) {
	cfg, err := config.LoadConfig(os.Getenv("CALLREPLAY_CONFIG"))
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return nil, false
	}
	c, err := codec.New(cfg.Codec.Type)
	if err != nil {
		fmt.Fprintf(stderr, "codec: %v\n", err)
		return nil, false
	}
	lc := log.Config(cfg.Log)
	return &env{cfg: cfg, logger: log.NewWriterLogger(stderr, &lc), codec: c}, true
}

func runConfig(stdout, stderr io.Writer) int {
	e, ok := loadEnv(stderr)
	if !ok {
		return 1
	}
	cfg := e.cfg
	fmt.Fprintf(stdout, "store.type=%s\n", cfg.Store.Type)
	fmt.Fprintf(stdout, "codec.type=%s\n", cfg.Codec.Type)
	fmt.Fprintf(stdout, "session.record_id=%s\n", cfg.Session.RecordID)
	fmt.Fprintf(stdout, "session.replay_id=%s\n", cfg.Session.ReplayID)
	fmt.Fprintf(stdout, "archive.type=%s\n", cfg.Archive.Type)
	fmt.Fprintf(stdout, "replay.skip_exit_on_mismatch=%t\n", cfg.Replay.SkipExitOnMismatch)
	return 0
}

func runNewSession(stdout io.Writer) int {
	fmt.Fprintln(stdout, uuid.NewString())
	return 0
}

func readSession(path string, c intercept.Codec) ([]sessionfile.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sessionfile.Read(f, c)
}

func runInspect(path string, stdout, stderr io.Writer) int {
	e, ok := loadEnv(stderr)
	if !ok {
		return 1
	}
	records, err := readSession(path, e.codec)
	if err != nil {
		fmt.Fprintf(stderr, "读取 session 文件失败: %v\n", err)
		return 1
	}
	summaries := sessionfile.Summarize(records)
	fmt.Fprintf(stdout, "%s: %d lanes, %d records\n", path, len(summaries), len(records))
	for _, s := range summaries {
		fmt.Fprintf(stdout, "lane %d: %d calls, %d faults\n", s.Lane, len(s.Calls), s.Faults())
		for _, c := range s.Calls {
			outcome := "value"
			switch {
			case !c.Completed:
				outcome = "incomplete"
			case c.Fault != "":
				outcome = "fault " + c.Fault
			}
			fmt.Fprintf(stdout, "  %s.%s(%d) -> %s\n", c.Class, c.Method, c.Params, outcome)
		}
		for _, p := range s.Problems {
			fmt.Fprintf(stdout, "  ! %s\n", p)
		}
	}
	if !sessionfile.Paired(summaries) {
		fmt.Fprintln(stdout, "pairing: FAILED")
		return 1
	}
	fmt.Fprintln(stdout, "pairing: ok")
	return 0
}

func runPush(path, name string, stdout, stderr io.Writer) int {
	e, ok := loadEnv(stderr)
	if !ok {
		return 1
	}
	if name == "" {
		name = filepath.Base(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "读取文件失败: %v\n", err)
		return 1
	}
	// 只上传能被解析的 session 文件
	if _, err := sessionfile.Read(bytes.NewReader(data), e.codec); err != nil {
		fmt.Fprintf(stderr, "无效的 session 文件: %v\n", err)
		return 1
	}
	ctx := context.Background()
	a, err := archive.New(ctx, e.cfg.Archive)
	if err != nil {
		fmt.Fprintf(stderr, "archive: %v\n", err)
		return 1
	}
	defer a.Close()
	if err := a.Put(ctx, name, bytes.NewReader(data)); err != nil {
		fmt.Fprintf(stderr, "上传失败: %v\n", err)
		return 1
	}
	e.logger.Info("session pushed", "name", name, "archive", e.cfg.Archive.Type, "bytes", len(data))
	fmt.Fprintln(stdout, name)
	return 0
}

func runPull(name, path string, stdout, stderr io.Writer) int {
	e, ok := loadEnv(stderr)
	if !ok {
		return 1
	}
	ctx := context.Background()
	a, err := archive.New(ctx, e.cfg.Archive)
	if err != nil {
		fmt.Fprintf(stderr, "archive: %v\n", err)
		return 1
	}
	defer a.Close()
	var buf bytes.Buffer
	if err := a.Get(ctx, name, &buf); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			fmt.Fprintf(stderr, "session %s 不存在\n", name)
		} else {
			fmt.Fprintf(stderr, "下载失败: %v\n", err)
		}
		return 1
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(stderr, "写入文件失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, path)
	return 0
}

// openBackend 打开配置的持久化存储；memory/file/header 不跨进程保存会话
func openBackend(ctx context.Context, e *env, stderr io.Writer) (intercept.Store, io.Closer, bool) {
	switch e.cfg.Store.Type {
	case "", store.TypeMemory, store.TypeFile, store.TypeHeader:
		fmt.Fprintf(stderr, "store.type=%q 不保存会话，请配置 redis/postgres/sqlite/badger\n", e.cfg.Store.Type)
		return nil, nil, false
	}
	// 会话 id 由命令参数指定，不修改存储中的当前会话
	cfg := *e.cfg
	cfg.Session = config.SessionConfig{}
	s, closer, err := store.New(ctx, &cfg, e.codec)
	if err != nil {
		fmt.Fprintf(stderr, "打开存储失败: %v\n", err)
		return nil, nil, false
	}
	return s, closer, true
}

func runLoad(sessionID, path string, stdout, stderr io.Writer) int {
	e, ok := loadEnv(stderr)
	if !ok {
		return 1
	}
	records, err := readSession(path, e.codec)
	if err != nil {
		fmt.Fprintf(stderr, "读取 session 文件失败: %v\n", err)
		return 1
	}
	ctx := context.Background()
	s, closer, ok := openBackend(ctx, e, stderr)
	if !ok {
		return 1
	}
	defer closer.Close()
	n, err := sessionfile.Append(ctx, s, sessionID, records)
	if err != nil {
		fmt.Fprintf(stderr, "导入失败（已写入 %d 条）: %v\n", n, err)
		return 1
	}
	e.logger.Info("session loaded", "session_id", sessionID, "store", e.cfg.Store.Type, "entries", n)
	fmt.Fprintf(stdout, "loaded %d entries into %s\n", n, sessionID)
	return 0
}

type counterRewinder interface {
	Rewind(ctx context.Context, sessionID string) (int64, error)
}

type rewinder interface {
	Rewind(ctx context.Context, sessionID string) error
}

func runRewind(sessionID string, stdout, stderr io.Writer) int {
	e, ok := loadEnv(stderr)
	if !ok {
		return 1
	}
	ctx := context.Background()
	s, closer, ok := openBackend(ctx, e, stderr)
	if !ok {
		return 1
	}
	defer closer.Close()
	switch r := s.(type) {
	case counterRewinder:
		n, err := r.Rewind(ctx, sessionID)
		if err != nil {
			fmt.Fprintf(stderr, "rewind 失败: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "rewound %d entries of %s\n", n, sessionID)
	case rewinder:
		if err := r.Rewind(ctx, sessionID); err != nil {
			fmt.Fprintf(stderr, "rewind 失败: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "rewound %s\n", sessionID)
	default:
		fmt.Fprintf(stderr, "store.type=%q 不支持 rewind（redis 请使用 copy）\n", e.cfg.Store.Type)
		return 1
	}
	return 0
}

type copier interface {
	Copy(ctx context.Context, from, to string) error
}

func runCopy(from, to string, stdout, stderr io.Writer) int {
	e, ok := loadEnv(stderr)
	if !ok {
		return 1
	}
	ctx := context.Background()
	s, closer, ok := openBackend(ctx, e, stderr)
	if !ok {
		return 1
	}
	defer closer.Close()
	c, ok := s.(copier)
	if !ok {
		fmt.Fprintf(stderr, "store.type=%q 不支持 copy\n", e.cfg.Store.Type)
		return 1
	}
	if err := c.Copy(ctx, from, to); err != nil {
		fmt.Fprintf(stderr, "copy 失败: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "copied %s to %s\n", from, to)
	return 0
}
