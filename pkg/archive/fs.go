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

package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"callreplay/pkg/errors"
)

// FS keeps session files in a local directory.
type FS struct {
	dir string
}

// NewFS creates the directory when missing.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "archive dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create archive dir")
	}
	return &FS{dir: dir}, nil
}

func (a *FS) Put(ctx context.Context, name string, r io.Reader) error {
	key, err := objectKey("", name)
	if err != nil {
		return err
	}
	// 先写临时文件再 rename，读者不会看到半个文件
	tmp, err := os.CreateTemp(a.dir, "."+key+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close session file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), filepath.Join(a.dir, key)), "publish session file")
}

func (a *FS) Get(ctx context.Context, name string, w io.Writer) error {
	key, err := objectKey("", name)
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(a.dir, key))
	if os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrNotFound, "session %s", name)
	}
	if err != nil {
		return errors.Wrap(err, "open session file")
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return errors.Wrap(err, "read session file")
}

func (a *FS) Close() error { return nil }
