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

package intercept

import (
	"context"
	"errors"
	"reflect"
)

var (
	// ErrStore wraps every failure reported by a Store.
	ErrStore = errors.New("intercept: store failure")

	// ErrCodec wraps every serialization failure reported by a Codec.
	ErrCodec = errors.New("intercept: codec failure")

	// ErrDecode is returned by a Codec when a string is not a valid encoding for the target type.
	ErrDecode = errors.New("intercept: invalid encoding for target type")
)

// Store persists recorded entries. Implementations must deliver entries of one
// (session, lane) pair in the order they were appended and serialize concurrent writers.
type Store interface {
	// RecordSessionID returns the active recording session, or "" when none is active.
	RecordSessionID(ctx context.Context) (string, error)

	// ReplaySessionID returns the active replay session, or "" when none is active.
	ReplaySessionID(ctx context.Context) (string, error)

	// Append adds an entry to the lane queue of a session.
	Append(ctx context.Context, sessionID string, lane int, e Entry) error

	// FetchNext consumes the next entry of a lane. It returns nil, nil when the lane is exhausted.
	FetchNext(ctx context.Context, sessionID string, lane int) (*Entry, error)
}

// Codec converts values to and from portable strings.
type Codec interface {
	// Serialize encodes v. A nil value encodes to "".
	Serialize(v any) (string, error)

	// Deserialize decodes s into a value of type t. "" decodes to the zero value of t.
	// Failures wrap ErrDecode.
	Deserialize(s string, t reflect.Type) (any, error)
}
