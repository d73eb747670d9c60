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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"callreplay/pkg/codec"
	"callreplay/pkg/config"
	"callreplay/pkg/intercept"
	"callreplay/pkg/store/sessionfile"
	"callreplay/pkg/store/sqlstore"
)

func entryPtr(e intercept.Entry) *intercept.Entry { return &e }

func writeSession(t *testing.T, records []sessionfile.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.session")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := sessionfile.Write(f, codec.JSON{}, records); err != nil {
		t.Fatalf("write session: %v", err)
	}
	return path
}

func pairedRecords() []sessionfile.Record {
	return []sessionfile.Record{
		{Lane: 0, Entry: entryPtr(intercept.NewEntryRecord("Clock", "Now", nil))},
		{Lane: 0, Entry: entryPtr(intercept.NewExitRecord("Clock", "Now", "\"2026-01-02T03:04:05Z\"", ""))},
		{Lane: 1, Entry: entryPtr(intercept.NewEntryRecord("Clock", "Sleep", []string{"1000"}))},
		{Lane: 1, Entry: entryPtr(intercept.NewExitRecord("Clock", "Sleep", "", "fault"))},
	}
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionAndUsage(t *testing.T) {
	code, out, _ := runCmd(t, "version")
	if code != 0 || !strings.Contains(out, "callreplay") {
		t.Fatalf("version: code=%d out=%q", code, out)
	}
	code, out, _ = runCmd(t)
	if code != 0 || !strings.Contains(out, "Usage") {
		t.Fatalf("usage: code=%d out=%q", code, out)
	}
	code, _, errOut := runCmd(t, "bogus")
	if code != 1 || !strings.Contains(errOut, "Usage") {
		t.Fatalf("unknown command: code=%d", code)
	}
	if code, _, _ := runCmd(t, "inspect"); code != 1 {
		t.Fatalf("inspect without file should fail")
	}
}

func TestNewSession(t *testing.T) {
	code, out, _ := runCmd(t, "new-session")
	if code != 0 {
		t.Fatalf("code=%d", code)
	}
	if _, err := uuid.Parse(strings.TrimSpace(out)); err != nil {
		t.Fatalf("not a uuid: %q", out)
	}
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv("STORE_TYPE", "sqlite")
	code, out, _ := runCmd(t, "config")
	if code != 0 {
		t.Fatalf("code=%d", code)
	}
	if !strings.Contains(out, "store.type=sqlite") || !strings.Contains(out, "codec.type=json") {
		t.Fatalf("unexpected config output: %s", out)
	}
}

func TestInspect_Paired(t *testing.T) {
	path := writeSession(t, pairedRecords())
	code, out, errOut := runCmd(t, "inspect", path)
	if code != 0 {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	for _, want := range []string{"2 lanes, 4 records", "lane 1: 1 calls, 1 faults", "Clock.Sleep(1) -> fault fault", "pairing: ok"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestInspect_Unpaired(t *testing.T) {
	records := pairedRecords()[:3]
	path := writeSession(t, records)
	code, out, _ := runCmd(t, "inspect", path)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(out, "Clock.Sleep has no exit") || !strings.Contains(out, "pairing: FAILED") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestInspect_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.session")
	if err := os.WriteFile(path, []byte("0\nnot-json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, errOut := runCmd(t, "inspect", path)
	if code != 1 || errOut == "" {
		t.Fatalf("expected failure, code=%d", code)
	}
}

func TestPushPull_FS(t *testing.T) {
	t.Setenv("ARCHIVE_DIR", t.TempDir())
	path := writeSession(t, pairedRecords())

	code, out, errOut := runCmd(t, "push", path)
	if code != 0 {
		t.Fatalf("push: code=%d stderr=%s", code, errOut)
	}
	if strings.TrimSpace(out) != "run.session" {
		t.Fatalf("push output: %q", out)
	}

	dest := filepath.Join(t.TempDir(), "pulled.session")
	if code, _, errOut := runCmd(t, "pull", "run.session", dest); code != 0 {
		t.Fatalf("pull: code=%d stderr=%s", code, errOut)
	}
	want, _ := os.ReadFile(path)
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(want, got) {
		t.Fatalf("pulled file differs")
	}

	code, _, errOut = runCmd(t, "pull", "missing.session", dest)
	if code != 1 || !strings.Contains(errOut, "不存在") {
		t.Fatalf("missing pull: code=%d stderr=%s", code, errOut)
	}
}

func TestPush_RejectsInvalidFile(t *testing.T) {
	t.Setenv("ARCHIVE_DIR", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.session")
	if err := os.WriteFile(path, []byte("0\n{oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := runCmd(t, "push", path, "bad"); code != 1 {
		t.Fatalf("expected push to fail")
	}
}

func TestLoadRewind_SQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "entries.db")
	t.Setenv("STORE_TYPE", "sqlite")
	t.Setenv("STORE_SQLITE_PATH", db)
	path := writeSession(t, pairedRecords())

	code, out, errOut := runCmd(t, "load", "sess-1", path)
	if code != 0 {
		t.Fatalf("load: code=%d stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "loaded 4 entries") {
		t.Fatalf("load output: %q", out)
	}

	ctx := context.Background()
	s, err := sqlstore.Open(config.SQLiteConfig{Path: db}, codec.JSON{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 2; i++ {
		if e, err := s.FetchNext(ctx, "sess-1", 1); err != nil || e == nil {
			t.Fatalf("fetch %d: %v %v", i, e, err)
		}
	}
	s.Close()

	code, out, errOut = runCmd(t, "rewind", "sess-1")
	if code != 0 || !strings.Contains(out, "rewound 2 entries") {
		t.Fatalf("rewind: code=%d out=%q stderr=%s", code, out, errOut)
	}

	if code, _, _ := runCmd(t, "copy", "sess-1", "sess-2"); code != 1 {
		t.Fatalf("copy should be unsupported for sqlite")
	}
}

func TestLoad_MemoryStoreRejected(t *testing.T) {
	path := writeSession(t, pairedRecords())
	code, _, errOut := runCmd(t, "load", "s", path)
	if code != 1 || !strings.Contains(errOut, "store.type") {
		t.Fatalf("expected rejection, code=%d stderr=%s", code, errOut)
	}
}

func TestLoad_NilSlotRejected(t *testing.T) {
	db := filepath.Join(t.TempDir(), "entries.db")
	t.Setenv("STORE_TYPE", "sqlite")
	t.Setenv("STORE_SQLITE_PATH", db)
	records := pairedRecords()
	records = append(records[:1], append([]sessionfile.Record{{Lane: 0}}, records[1:]...)...)
	path := writeSession(t, records)

	code, _, errOut := runCmd(t, "load", "sess-1", path)
	if code != 1 || !strings.Contains(errOut, "nil slot") {
		t.Fatalf("expected nil slot rejection, code=%d stderr=%s", code, errOut)
	}

	s, err := sqlstore.Open(config.SQLiteConfig{Path: db}, codec.JSON{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if e, err := s.FetchNext(context.Background(), "sess-1", 0); err != nil || e != nil {
		t.Fatalf("nothing should be loaded, got %v %v", e, err)
	}
}
