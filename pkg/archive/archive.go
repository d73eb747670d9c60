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

// Package archive 发布与获取录制好的 session 文件
package archive

import (
	"context"
	"io"
	"path"
	"strings"

	"callreplay/pkg/config"
	"callreplay/pkg/errors"
)

const (
	TypeFS  = "fs"
	TypeS3  = "s3"
	TypeGCS = "gcs"
)

// Archive stores session files by name.
type Archive interface {
	// Put uploads the content of r under name, replacing an existing file.
	Put(ctx context.Context, name string, r io.Reader) error

	// Get writes the file archived under name to w. A missing file wraps errors.ErrNotFound.
	Get(ctx context.Context, name string, w io.Writer) error

	Close() error
}

// New 根据 cfg.Type 创建 Archive
func New(ctx context.Context, cfg config.ArchiveConfig) (Archive, error) {
	switch cfg.Type {
	case "", TypeFS:
		return NewFS(cfg.Dir)
	case TypeS3:
		return NewS3(ctx, cfg)
	case TypeGCS:
		return NewGCS(ctx, cfg)
	default:
		return nil, errors.Wrapf(errors.ErrUnsupported, "archive type %q", cfg.Type)
	}
}

// objectKey validates name and joins it to prefix.
func objectKey(prefix, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\x00") {
		return "", errors.Wrapf(errors.ErrInvalidArg, "session name %q", name)
	}
	if prefix == "" {
		return name, nil
	}
	return path.Join(prefix, name), nil
}
