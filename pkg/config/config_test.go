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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
log:
  level: "debug"
store:
  type: "redis"
  redis:
    addr: "127.0.0.1:6380"
    db: 2
codec:
  type: "cbor"
session:
  record_file: "run.session"
archive:
  type: "s3"
  bucket: "sessions"
replay:
  skip_exit_on_mismatch: true
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Store.Type != "redis" || cfg.Store.Redis.Addr != "127.0.0.1:6380" || cfg.Store.Redis.DB != 2 {
		t.Errorf("Store: got %+v", cfg.Store)
	}
	if cfg.Store.Redis.KeyPrefix != "callreplay" {
		t.Errorf("Store.Redis.KeyPrefix default: got %q", cfg.Store.Redis.KeyPrefix)
	}
	if cfg.Codec.Type != "cbor" {
		t.Errorf("Codec.Type: got %q", cfg.Codec.Type)
	}
	if cfg.Session.RecordFile != "run.session" {
		t.Errorf("Session.RecordFile: got %q", cfg.Session.RecordFile)
	}
	if cfg.Archive.Type != "s3" || cfg.Archive.Bucket != "sessions" {
		t.Errorf("Archive: got %+v", cfg.Archive)
	}
	if !cfg.Replay.SkipExitOnMismatch {
		t.Error("Replay.SkipExitOnMismatch: want true")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Store.Type: got %q", cfg.Store.Type)
	}
	if cfg.Codec.Type != "json" {
		t.Errorf("Codec.Type: got %q", cfg.Codec.Type)
	}
	if cfg.Archive.Type != "fs" {
		t.Errorf("Archive.Type: got %q", cfg.Archive.Type)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SESSION_REPLAY_FILE", "from-env.session")
	t.Setenv("STORE_TYPE", "file")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Session.ReplayFile != "from-env.session" {
		t.Errorf("Session.ReplayFile: got %q", cfg.Session.ReplayFile)
	}
	if cfg.Store.Type != "file" {
		t.Errorf("Store.Type: got %q", cfg.Store.Type)
	}
}

func TestLoadConfig_SecretExpansion(t *testing.T) {
	t.Setenv("CALLREPLAY_TEST_DSN", "postgres://u:p@localhost/db")
	dir := t.TempDir()
	path := filepath.Join(dir, "pg.yaml")
	yaml := "store:\n  type: postgres\n  postgres:\n    dsn: \"${CALLREPLAY_TEST_DSN}\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Postgres.DSN != "postgres://u:p@localhost/db" {
		t.Errorf("Store.Postgres.DSN: got %q", cfg.Store.Postgres.DSN)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig on a missing file should fail")
	}
}
