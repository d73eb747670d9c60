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

// Package codec 提供 intercept.Codec 的实现：json、bson、cbor
package codec

import (
	"fmt"
	"reflect"
	"strings"

	"callreplay/pkg/errors"
	"callreplay/pkg/intercept"
)

const (
	NameJSON = "json"
	NameBSON = "bson"
	NameCBOR = "cbor"
)

// New 按名称创建 codec；空名称返回 JSON
func New(name string) (intercept.Codec, error) {
	switch strings.ToLower(name) {
	case "", NameJSON:
		return JSON{}, nil
	case NameBSON:
		return BSON{}, nil
	case NameCBOR:
		return CBOR{}, nil
	default:
		return nil, errors.Wrapf(errors.ErrUnsupported, "codec %q", name)
	}
}

// decodeInto allocates a value of type t, lets fill decode into it and returns the value.
func decodeInto(s string, t reflect.Type, fill func(ptr any) error) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no target type", intercept.ErrDecode)
	}
	if s == "" {
		return reflect.Zero(t).Interface(), nil
	}
	ptr := reflect.New(t)
	if err := fill(ptr.Interface()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", intercept.ErrDecode, t, err)
	}
	return ptr.Elem().Interface(), nil
}
