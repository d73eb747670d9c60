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

package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callreplay/pkg/codec"
	"callreplay/pkg/config"
	"callreplay/pkg/intercept"
)

// 集成测试：需设置 TEST_REDIS_ADDR，例如 localhost:6379
func openTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	prefix := "callreplay-test-" + uuid.NewString()
	s, err := Open(context.Background(), config.RedisConfig{Addr: addr, KeyPrefix: prefix}, codec.JSON{})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeys(t *testing.T) {
	s := New(nil, codec.JSON{}, "")
	assert.Equal(t, "callreplay:session:record", s.sessionKey("record"))
	assert.Equal(t, "callreplay:s1:3", s.laneKey("s1", 3))
}

func TestStore_Sessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.RecordSessionID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SetRecordSession(ctx, "rec"))
	require.NoError(t, s.SetReplaySession(ctx, "rep"))
	id, _ = s.RecordSessionID(ctx)
	assert.Equal(t, "rec", id)
	id, _ = s.ReplaySessionID(ctx)
	assert.Equal(t, "rep", id)

	require.NoError(t, s.SetRecordSession(ctx, ""))
	id, _ = s.RecordSessionID(ctx)
	assert.Empty(t, id)
}

func TestStore_FIFOPerLane(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "s", 0, intercept.NewEntryRecord("Foo", "Bar", []string{"1"})))
	require.NoError(t, s.Append(ctx, "s", 1, intercept.NewEntryRecord("Foo", "Bar", []string{"2"})))
	require.NoError(t, s.Append(ctx, "s", 0, intercept.NewExitRecord("Foo", "Bar", "2", "")))

	e, err := s.FetchNext(ctx, "s", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, e.InputParameters)
	e, _ = s.FetchNext(ctx, "s", 0)
	assert.True(t, e.IsExitRecord())
	e, _ = s.FetchNext(ctx, "s", 0)
	assert.Nil(t, e)
	e, _ = s.FetchNext(ctx, "s", 1)
	assert.Equal(t, []string{"2"}, e.InputParameters)
}

func TestStore_Copy(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "src", 2, intercept.NewEntryRecord("Foo", "Bar", []string{"1"})))
	require.NoError(t, s.Copy(ctx, "src", "dst"))

	e, err := s.FetchNext(ctx, "dst", 2)
	require.NoError(t, err)
	require.NotNil(t, e)
	e, _ = s.FetchNext(ctx, "src", 2)
	assert.NotNil(t, e)
}

func TestLaneKeys(t *testing.T) {
	keys := []string{
		"p:session:0",
		"p:session:0", // SCAN 可能重复返回
		"p:session:12",
		"p:session:record",
		"p:session:replay",
		"p:session:x:1",
		"p:session:01",
		"p:session:-1",
		"p:other:3",
	}
	got := laneKeys(keys, "p", "session")
	assert.Equal(t, map[int]string{0: "p:session:0", 12: "p:session:12"}, got)
}

func TestGlobEscape(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, globEscape("a*b?c[d]"))
	assert.Equal(t, "plain:id:", globEscape("plain:id:"))
}

func TestStore_CopyReplacesDestination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "src", 0, intercept.NewEntryRecord("Foo", "Bar", []string{"new"})))
	require.NoError(t, s.Append(ctx, "dst", 0, intercept.NewEntryRecord("Foo", "Bar", []string{"stale"})))
	require.NoError(t, s.Append(ctx, "dst", 5, intercept.NewEntryRecord("Foo", "Bar", []string{"stale"})))

	require.NoError(t, s.Copy(ctx, "src", "dst"))
	require.NoError(t, s.Copy(ctx, "src", "dst"))

	e, err := s.FetchNext(ctx, "dst", 0)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []string{"new"}, e.InputParameters)
	e, err = s.FetchNext(ctx, "dst", 0)
	require.NoError(t, err)
	assert.Nil(t, e)
	e, err = s.FetchNext(ctx, "dst", 5)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestStore_CopySessionNamedSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetRecordSession(ctx, "session"))
	require.NoError(t, s.Append(ctx, "session", 1, intercept.NewEntryRecord("Foo", "Bar", []string{"1"})))
	require.NoError(t, s.Append(ctx, "session:x", 1, intercept.NewEntryRecord("Foo", "Bar", []string{"nested"})))

	require.NoError(t, s.Copy(ctx, "session", "dst"))

	e, err := s.FetchNext(ctx, "dst", 1)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []string{"1"}, e.InputParameters)
	e, _ = s.FetchNext(ctx, "dst", 1)
	assert.Nil(t, e)

	id, err := s.RecordSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session", id)
}
