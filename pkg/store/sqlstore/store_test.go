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

package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callreplay/pkg/codec"
	"callreplay/pkg/config"
	"callreplay/pkg/intercept"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "entries.db")}, codec.JSON{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.RecordSessionID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SetRecordSession(ctx, "r1"))
	require.NoError(t, s.SetRecordSession(ctx, "r2"))
	require.NoError(t, s.SetReplaySession(ctx, "p1"))
	id, _ = s.RecordSessionID(ctx)
	assert.Equal(t, "r2", id)
	id, _ = s.ReplaySessionID(ctx)
	assert.Equal(t, "p1", id)

	require.NoError(t, s.SetRecordSession(ctx, ""))
	id, _ = s.RecordSessionID(ctx)
	assert.Empty(t, id)
}

func TestStore_FIFOPerLane(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Append(ctx, "s", 0, intercept.NewEntryRecord("Foo", "Bar", []string{"1"})))
	require.NoError(t, s.Append(ctx, "s", 1, intercept.NewEntryRecord("Foo", "Bar", []string{"2"})))
	require.NoError(t, s.Append(ctx, "other", 0, intercept.NewEntryRecord("X", "Y", nil)))
	require.NoError(t, s.Append(ctx, "s", 0, intercept.NewExitRecord("Foo", "Bar", "2", "")))

	e, err := s.FetchNext(ctx, "s", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, e.InputParameters)
	e, _ = s.FetchNext(ctx, "s", 0)
	assert.True(t, e.IsExitRecord())
	assert.Equal(t, "2", e.ReturnValue)
	e, _ = s.FetchNext(ctx, "s", 0)
	assert.Nil(t, e)
	e, _ = s.FetchNext(ctx, "s", 1)
	assert.Equal(t, []string{"2"}, e.InputParameters)

	n, err := s.Rewind(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(config.SQLiteConfig{Path: ":memory:"}, codec.CBOR{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(ctx, "s", 0, intercept.NewEntryRecord("Foo", "Bar", []string{"1"})))
	e, err := s.FetchNext(ctx, "s", 0)
	require.NoError(t, err)
	assert.Equal(t, "Foo", e.ClassName)
}

func TestStore_QueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS context_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := New(db, codec.JSON{})
	require.NoError(t, err)
	ctx := context.Background()

	boom := errors.New("database is locked")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT session_id FROM context_sessions")).
		WithArgs(kindRecord).
		WillReturnError(boom)
	_, err = s.RecordSessionID(ctx)
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO context_entries")).
		WithArgs("s", 0, sqlmock.AnyArg()).
		WillReturnError(boom)
	assert.ErrorIs(t, s.Append(ctx, "s", 0, intercept.NewEntryRecord("A", "B", nil)), boom)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, payload FROM context_entries")).
		WithArgs("s", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload"}).AddRow(1, "{broken"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE context_entries SET consumed = 1")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	_, err = s.FetchNext(ctx, "s", 0)
	assert.ErrorIs(t, err, intercept.ErrCodec)

	mock.ExpectBegin().WillReturnError(boom)
	_, err = s.FetchNext(ctx, "s", 0)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("read-only"))
	_, err = New(db, codec.JSON{})
	assert.Error(t, err)
}
