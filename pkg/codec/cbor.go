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

package codec

import (
	"encoding/base64"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// time.Time 以 RFC3339Nano 文本编码，保留纳秒
var cborEnc = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// CBOR encodes values as base64 CBOR. Times keep nanosecond precision.
type CBOR struct{}

// Serialize 实现 intercept.Codec
func (CBOR) Serialize(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := cborEnc.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Deserialize 实现 intercept.Codec
func (CBOR) Deserialize(s string, t reflect.Type) (any, error) {
	return decodeInto(s, t, func(ptr any) error {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		return cbor.Unmarshal(b, ptr)
	})
}
