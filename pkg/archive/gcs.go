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
	stderrors "errors"
	"io"

	"cloud.google.com/go/storage"

	"callreplay/pkg/config"
	"callreplay/pkg/errors"
)

// GCS keeps session files in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS uses application default credentials.
func NewGCS(ctx context.Context, cfg config.ArchiveConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "archive bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create gcs client")
	}
	return &GCS{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *GCS) Put(ctx context.Context, name string, r io.Reader) error {
	key, err := objectKey(a.prefix, name)
	if err != nil {
		return err
	}
	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "gcs write %s", key)
	}
	return errors.Wrapf(w.Close(), "gcs close %s", key)
}

func (a *GCS) Get(ctx context.Context, name string, w io.Writer) error {
	key, err := objectKey(a.prefix, name)
	if err != nil {
		return err
	}
	reader, err := a.client.Bucket(a.bucket).Object(key).NewReader(ctx)
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(errors.ErrNotFound, "session %s", name)
	}
	if err != nil {
		return errors.Wrapf(err, "gcs get %s", key)
	}
	defer func() { _ = reader.Close() }()
	_, err = io.Copy(w, reader)
	return errors.Wrapf(err, "gcs read %s", key)
}

func (a *GCS) Close() error {
	return a.client.Close()
}
