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
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"callreplay/pkg/config"
	"callreplay/pkg/errors"
)

// S3 keeps session files in an S3 bucket. Endpoint selects an S3-compatible
// service such as MinIO and switches to path-style addressing.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 loads the default AWS credential chain.
func NewS3(ctx context.Context, cfg config.ArchiveConfig) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "archive bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *S3) Put(ctx context.Context, name string, r io.Reader) error {
	key, err := objectKey(a.prefix, name)
	if err != nil {
		return err
	}
	// PutObject 需要可 Seek 的 body 来计算签名
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "read session file")
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	return errors.Wrapf(err, "s3 put %s", key)
}

func (a *S3) Get(ctx context.Context, name string, w io.Writer) error {
	key, err := objectKey(a.prefix, name)
	if err != nil {
		return err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if stderrors.As(err, &nsk) {
			return errors.Wrapf(errors.ErrNotFound, "session %s", name)
		}
		return errors.Wrapf(err, "s3 get %s", key)
	}
	defer func() { _ = out.Body.Close() }()
	_, err = io.Copy(w, out.Body)
	return errors.Wrapf(err, "s3 read %s", key)
}

func (a *S3) Close() error { return nil }
